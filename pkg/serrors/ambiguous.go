package serrors

// AmbiguousError reports that a first-parent walk crossed a boundary with
// more than one parent before reaching the requested distance or ancestor.
type AmbiguousError struct {
	*baseError
	id       string
	distance uint64
}

// NewAmbiguousError creates an AmbiguousError for the given id and distance
// walked before hitting the multi-parent boundary.
func NewAmbiguousError(id string, distance uint64) *AmbiguousError {
	e := &AmbiguousError{
		baseError: NewBaseError(nil, ErrorCodeAmbiguous, "ambiguous: more than one parent"),
		id:        id,
		distance:  distance,
	}
	e.withDetail("id", id)
	e.withDetail("distance", distance)
	return e
}

// Id returns the id at which the walk became ambiguous.
func (e *AmbiguousError) Id() string { return e.id }

// Distance returns how many single-parent steps succeeded before the walk
// became ambiguous.
func (e *AmbiguousError) Distance() uint64 { return e.distance }
