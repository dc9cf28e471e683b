package serrors

import stdErrors "errors"

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return stdErrors.As(err, &e)
}

// IsConflict reports whether err is, or wraps, a ConflictError.
func IsConflict(err error) bool {
	var e *ConflictError
	return stdErrors.As(err, &e)
}

// IsMismatchedHeads reports whether err is, or wraps, a MismatchedHeadsError.
func IsMismatchedHeads(err error) bool {
	var e *MismatchedHeadsError
	return stdErrors.As(err, &e)
}

// IsBug reports whether err is, or wraps, a BugError.
func IsBug(err error) bool {
	var e *BugError
	return stdErrors.As(err, &e)
}

// AsMismatchedHeads extracts a *MismatchedHeadsError from err's chain.
func AsMismatchedHeads(err error) (*MismatchedHeadsError, bool) {
	var e *MismatchedHeadsError
	if stdErrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// AsCorruptSegment extracts a *CorruptSegmentError from err's chain.
func AsCorruptSegment(err error) (*CorruptSegmentError, bool) {
	var e *CorruptSegmentError
	if stdErrors.As(err, &e) {
		return e, true
	}
	return nil, false
}
