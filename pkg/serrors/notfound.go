package serrors

// NotFoundError reports a lookup miss against the IdMap or IdDag. It is
// recoverable: the Updater may convert it into a "need update" decision
// before deciding whether to surface it to the caller.
type NotFoundError struct {
	*baseError
	vertex string // hex, if the lookup was keyed by vertex
	id     string // string form, if the lookup was keyed by id
}

// NewNotFoundError creates a NotFoundError with the given message.
func NewNotFoundError(msg string) *NotFoundError {
	return &NotFoundError{baseError: NewBaseError(nil, ErrorCodeNotFound, msg)}
}

// WithVertex records which vertex the lookup was for.
func (e *NotFoundError) WithVertex(hex string) *NotFoundError {
	e.vertex = hex
	e.withDetail("vertex", hex)
	return e
}

// WithId records which id the lookup was for.
func (e *NotFoundError) WithId(id string) *NotFoundError {
	e.id = id
	e.withDetail("id", id)
	return e
}

// Vertex returns the hex vertex the miss was for, if any.
func (e *NotFoundError) Vertex() string { return e.vertex }

// Id returns the id the miss was for, if any.
func (e *NotFoundError) Id() string { return e.id }
