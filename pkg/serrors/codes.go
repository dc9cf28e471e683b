package serrors

// ErrorCode standardizes error categorization across the changelog so
// callers can dispatch on a stable string rather than parsing messages.
type ErrorCode string

const (
	// ErrorCodeIO covers failures of the underlying segment log, the bbolt
	// indexes, or the wlock file.
	ErrorCodeIO ErrorCode = "IO_ERROR"
	// ErrorCodeInvalidInput covers malformed caller-supplied arguments.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrorCodeInternal is the fallback for errors without a specific code.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"

	// ErrorCodeNotFound: a lookup against the IdMap or IdDag missed.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeMismatchedHeads: an update attempt left one or more heads
	// unassigned.
	ErrorCodeMismatchedHeads ErrorCode = "MISMATCHED_HEADS"
	// ErrorCodeGroupViolation: an operation broke group ordering or targeted
	// an unimplemented group (building NON_MASTER).
	ErrorCodeGroupViolation ErrorCode = "GROUP_VIOLATION"
	// ErrorCodeCorruptSegment: decoded segment bytes failed an invariant.
	ErrorCodeCorruptSegment ErrorCode = "CORRUPT_SEGMENT"
	// ErrorCodeConflict: an IdMap insert would overwrite a distinct
	// assignment.
	ErrorCodeConflict ErrorCode = "CONFLICT"
	// ErrorCodeLockContended: the filesystem wlock could not be acquired.
	ErrorCodeLockContended ErrorCode = "LOCK_CONTENDED"
	// ErrorCodeBug: an internal invariant was violated. Fatal to the calling
	// operation.
	ErrorCodeBug ErrorCode = "BUG"
	// ErrorCodeExternal: a ChangesetFetcher or Bookmarks collaborator failed.
	ErrorCodeExternal ErrorCode = "EXTERNAL"
	// ErrorCodeAmbiguous: a first-parent walk crossed a multi-parent
	// boundary before reaching the requested distance.
	ErrorCodeAmbiguous ErrorCode = "AMBIGUOUS"
)
