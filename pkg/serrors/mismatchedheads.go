package serrors

// MismatchedHeadsError is surfaced by the Updater after a full update
// attempt still leaves one or more requested heads unassigned.
type MismatchedHeadsError struct {
	*baseError
	heads []string // hex-encoded offending vertexes
}

// NewMismatchedHeadsError creates a MismatchedHeadsError for the given
// offending heads (hex-encoded).
func NewMismatchedHeadsError(heads []string) *MismatchedHeadsError {
	e := &MismatchedHeadsError{
		baseError: NewBaseError(nil, ErrorCodeMismatchedHeads, "one or more heads remain unassigned after update"),
		heads:     heads,
	}
	e.withDetail("heads", heads)
	return e
}

// Heads returns the hex-encoded vertexes that remained unassigned.
func (e *MismatchedHeadsError) Heads() []string { return e.heads }
