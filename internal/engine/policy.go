package engine

import "net/http"

// RetryPolicy decides whether a failed replay attempt should be retried or
// treated as permanent. status is the HTTP status for remote rejections and
// 0 for transport-level failures (err non-nil).
//
// Retryable failures increment the operation's retry counter, evicting it to
// the dead-letter log once the budget is exhausted. Permanent failures
// dead-letter the operation immediately - retrying a request the server has
// already judged invalid only burns the budget and delays the inevitable.
type RetryPolicy func(status int, err error) bool

// RetryTransient is the default policy: transport failures and the statuses
// that signal a transient server condition (408, 429, 5xx) are retried;
// any other 4xx is permanent.
func RetryTransient(status int, err error) bool {
	if err != nil {
		return true
	}
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

// RetryAll treats every failure as retryable, application-level rejections
// included. This reproduces the legacy behavior where a permanently-invalid
// request is retried until the budget runs out.
func RetryAll(int, error) bool { return true }
