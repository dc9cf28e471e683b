package serrors

// ConflictError reports that an IdMap insert would overwrite an existing,
// distinct assignment: the same id already maps to a different vertex, or
// the same vertex already maps to a different id within the group.
type ConflictError struct {
	*baseError
	vertex     string
	existingId string
	newId      string
}

// NewConflictError creates a ConflictError describing the colliding
// assignment.
func NewConflictError(vertex, existingId, newId string) *ConflictError {
	e := &ConflictError{
		baseError:  NewBaseError(nil, ErrorCodeConflict, "vertex already assigned a different id"),
		vertex:     vertex,
		existingId: existingId,
		newId:      newId,
	}
	e.withDetail("vertex", vertex)
	e.withDetail("existingId", existingId)
	e.withDetail("newId", newId)
	return e
}

// Vertex returns the hex vertex involved in the conflict.
func (e *ConflictError) Vertex() string { return e.vertex }

// ExistingId returns the id the vertex was already assigned.
func (e *ConflictError) ExistingId() string { return e.existingId }

// NewId returns the id the caller attempted to assign instead.
func (e *ConflictError) NewId() string { return e.newId }
