package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Caller errors
const (
	// ErrCodeInvalidArgument indicates a missing or malformed argument.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeUnsupported indicates the operation is not valid for the target,
	// for example reading bytes from a directory entry.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_OPERATION"
)

// Auth errors
const (
	// ErrCodeUnauthorized indicates a missing, malformed or rejected token.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested file or folder does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates a non-overwriting write hit an existing key.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// Remote service errors
const (
	// ErrCodeServiceError wraps any failure surfaced by the remote asset client.
	ErrCodeServiceError ErrorCode = "SERVICE_ERROR"
	// ErrCodeServiceUnavailable indicates the remote client is not started.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// ErrCodeInternal indicates an unexpected failure inside this process.
const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
// SERVICE_ERROR is never retryable at this layer.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
