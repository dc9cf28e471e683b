package serrors

// BugError reports an internal invariant violation, such as RemoveNonMaster
// not taking effect. It is fatal to the operation that raised it and should
// be logged at error severity by the caller.
type BugError struct {
	*baseError
	invariant string
}

// NewBugError creates a BugError naming the invariant that was violated.
func NewBugError(cause error, invariant string) *BugError {
	e := &BugError{
		baseError: NewBaseError(cause, ErrorCodeBug, "internal invariant violated: "+invariant),
		invariant: invariant,
	}
	e.withDetail("invariant", invariant)
	return e
}

// Invariant returns the name of the violated invariant.
func (e *BugError) Invariant() string { return e.invariant }
