package serrors

// LockContendedError reports that the Segment Store's exclusive filesystem
// wlock could not be acquired.
type LockContendedError struct {
	*baseError
	path string
}

// NewLockContendedError creates a LockContendedError for the wlock file at
// path.
func NewLockContendedError(cause error, path string) *LockContendedError {
	e := &LockContendedError{
		baseError: NewBaseError(cause, ErrorCodeLockContended, "failed to acquire exclusive store lock"),
		path:      path,
	}
	e.withDetail("path", path)
	return e
}

// Path returns the wlock file path that was contended.
func (e *LockContendedError) Path() string { return e.path }
