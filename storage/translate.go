package storage

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/httpclient"
	"github.com/kbukum/mediafs/resilience"
)

// Failure reasons attached to SERVICE_ERROR details.
const (
	ReasonAuth        = "auth"
	ReasonNetwork     = "network"
	ReasonTimeout     = "timeout"
	ReasonCanceled    = "canceled"
	ReasonRateLimit   = "rate_limit"
	ReasonNotFound    = "not_found"
	ReasonConflict    = "conflict"
	ReasonUnavailable = "unavailable"
	ReasonRemote      = "remote"
)

// Error lets a backend tag a failure with a reason the generic classifier
// cannot infer, such as an S3 API error code.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string { return "storage: " + e.Reason + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Reason classifies a client error for logs, metrics and error details.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case stderrors.Is(err, ErrAlreadyExists):
		return ReasonConflict
	case stderrors.Is(err, ErrNotFound):
		return ReasonNotFound
	case stderrors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case stderrors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.IsCode(err, errors.ErrCodeServiceUnavailable),
		stderrors.Is(err, resilience.ErrCircuitOpen),
		stderrors.Is(err, resilience.ErrBulkheadFull):
		return ReasonUnavailable
	}

	var tagged *Error
	if stderrors.As(err, &tagged) {
		return tagged.Reason
	}

	var httpErr *httpclient.Error
	if stderrors.As(err, &httpErr) {
		switch httpErr.Code {
		case httpclient.ErrCodeAuth:
			return ReasonAuth
		case httpclient.ErrCodeNotFound:
			return ReasonNotFound
		case httpclient.ErrCodeConflict:
			return ReasonConflict
		case httpclient.ErrCodeRateLimit:
			return ReasonRateLimit
		case httpclient.ErrCodeTimeout:
			return ReasonTimeout
		case httpclient.ErrCodeConnection:
			return ReasonNetwork
		}
		return ReasonRemote
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetwork
	}
	return ReasonRemote
}

// Translate converts a client error into the AppError surfaced to callers.
// A conditional-write conflict becomes ALREADY_EXISTS; everything else is a
// SERVICE_ERROR carrying the operation, storage key and reason.
func Translate(operation, key string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, ErrAlreadyExists) {
		return errors.AlreadyExists("file", key).WithCause(err)
	}
	if appErr, ok := errors.AsAppError(err); ok && appErr.Code != errors.ErrCodeServiceUnavailable {
		return err
	}
	return errors.ServiceError(operation, key, err).WithDetail("reason", Reason(err))
}
