package serrors

// CorruptSegmentError reports decoded segment bytes that fail an invariant:
// low > high, parents inconsistent with flags, or a level byte colliding
// with a magic record prefix.
type CorruptSegmentError struct {
	*baseError
	offset int64
	reason string
}

// NewCorruptSegmentError creates a CorruptSegmentError with the given cause
// and reason.
func NewCorruptSegmentError(cause error, reason string) *CorruptSegmentError {
	e := &CorruptSegmentError{
		baseError: NewBaseError(cause, ErrorCodeCorruptSegment, "segment record failed validation"),
		reason:    reason,
	}
	e.withDetail("reason", reason)
	return e
}

// WithOffset records the byte offset in the log where the bad record starts.
func (e *CorruptSegmentError) WithOffset(offset int64) *CorruptSegmentError {
	e.offset = offset
	e.withDetail("offset", offset)
	return e
}

// Offset returns the byte offset of the offending record.
func (e *CorruptSegmentError) Offset() int64 { return e.offset }

// Reason returns which invariant was violated.
func (e *CorruptSegmentError) Reason() string { return e.reason }
