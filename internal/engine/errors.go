package engine

import (
	"errors"
	"fmt"
)

// Error represents a failure detected at the engine boundary.
//
// Engine errors include:
//   - Transport failure: network unreachable, timeout, connection reset
//   - Remote rejection: a reachable server returned a non-2xx status
//   - Storage failure: the durable store is unavailable
//   - No cached data: an offline read with nothing to fall back to
//
// Error includes structured fields for diagnostics and policy decisions.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// URL identifies the affected call, when there is one.
	URL string

	// Status is the HTTP status for remote rejections, 0 otherwise.
	Status int

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeTransport indicates the network itself failed - unreachable,
	// timeout, connection reset. Retryable.
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeRemoteRejected indicates a reachable server returned a non-2xx
	// status. Whether it is retried depends on the RetryPolicy.
	ErrCodeRemoteRejected ErrorCode = "REMOTE_REJECTED"

	// ErrCodeStorage indicates the durable store is unavailable or full.
	// Fatal to the specific call; always surfaced synchronously.
	ErrCodeStorage ErrorCode = "STORAGE"

	// ErrCodeNoCachedData indicates an offline read with no cached entry.
	ErrCodeNoCachedData ErrorCode = "NO_CACHED_DATA"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.URL != "":
		return fmt.Sprintf("%s: %s (status=%d, url=%s)", e.Code, e.Message, e.Status, e.URL)
	case e.URL != "":
		return fmt.Sprintf("%s: %s (url=%s)", e.Code, e.Message, e.URL)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransportError wraps a transport-level failure for url.
func NewTransportError(url string, err error) *Error {
	msg := "network call failed"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Code: ErrCodeTransport, Message: msg, URL: url, Err: err}
}

// NewRemoteRejection records a non-2xx response from a reachable server.
func NewRemoteRejection(url string, status int) *Error {
	return &Error{
		Code:    ErrCodeRemoteRejected,
		Message: fmt.Sprintf("server rejected request with status %d", status),
		URL:     url,
		Status:  status,
	}
}

// NewStorageError wraps a durable-store failure during op.
func NewStorageError(op string, err error) *Error {
	return &Error{
		Code:    ErrCodeStorage,
		Message: fmt.Sprintf("storage failure during %s", op),
		Err:     err,
	}
}

// ErrNoCachedData is returned for an offline read with no cached entry.
// The caller gets a clear "no cached data" error rather than a hang.
var ErrNoCachedData = &Error{Code: ErrCodeNoCachedData, Message: "offline and no cached data available"}

// IsTransportError returns true if the error is a transport-level failure.
// Uses errors.As to handle wrapped errors.
func IsTransportError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeTransport
}

// IsRemoteRejection returns true if the error is a non-2xx server response.
// Uses errors.As to handle wrapped errors.
func IsRemoteRejection(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeRemoteRejected
}

// IsStorageError returns true if the error is a durable-store failure.
// Uses errors.As to handle wrapped errors.
func IsStorageError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeStorage
}

// IsNoCachedData returns true if the error is the offline cache-miss error.
func IsNoCachedData(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeNoCachedData
}
