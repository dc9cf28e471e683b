package serrors

// GroupViolationError reports an attempt to assign, promote, or build a
// group in a way that breaks group ordering, or that targets a group the
// operation does not support (building NON_MASTER segments is unimplemented
// and must fail fast rather than silently do the wrong thing).
type GroupViolationError struct {
	*baseError
	group     string
	operation string
}

// NewGroupViolationError creates a GroupViolationError for the given group
// and offending operation.
func NewGroupViolationError(group, operation, msg string) *GroupViolationError {
	e := &GroupViolationError{
		baseError: NewBaseError(nil, ErrorCodeGroupViolation, msg),
		group:     group,
		operation: operation,
	}
	e.withDetail("group", group)
	e.withDetail("operation", operation)
	return e
}

// Group returns the group the violation concerns.
func (e *GroupViolationError) Group() string { return e.group }

// Operation returns the operation that attempted the violation.
func (e *GroupViolationError) Operation() string { return e.operation }
