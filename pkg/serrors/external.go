package serrors

// ExternalError wraps a failure from a collaborator the core does not own:
// the ChangesetFetcher or the Bookmarks store.
type ExternalError struct {
	*baseError
	collaborator string
}

// NewExternalError wraps cause as a failure of the named collaborator.
func NewExternalError(cause error, collaborator, msg string) *ExternalError {
	e := &ExternalError{
		baseError:    NewBaseError(cause, ErrorCodeExternal, msg),
		collaborator: collaborator,
	}
	e.withDetail("collaborator", collaborator)
	return e
}

// Collaborator returns the name of the failing collaborator
// (e.g. "ChangesetFetcher", "Bookmarks").
func (e *ExternalError) Collaborator() string { return e.collaborator }
