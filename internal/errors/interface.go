package errors

// ErrorCode represents a unique identifier for each error type
type ErrorCode string

// Coder is implemented by anything that carries an ErrorCode. HasCode and
// CodeOf match on it, so package-local error types take part in code checks.
type Coder interface {
	Code() ErrorCode
}

// Error represents a domain-specific error with context
type Error interface {
	error
	Coder
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory defines methods for creating domain errors
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
