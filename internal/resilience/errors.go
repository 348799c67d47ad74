package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// StatusError carries a non-2xx HTTP status from a fetch backend so callers
// can distinguish transient, blocking, and permanent failures.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.Code, e.URL)
}

// blockingStatuses are anti-automation responses. They are terminal for the
// backend that returned them: retrying only increases the chance of a
// longer block.
var blockingStatuses = map[int]bool{403: true, 412: true, 503: true}

// retryableStatuses are transient server-side failures worth another try.
var retryableStatuses = map[int]bool{408: true, 409: true, 425: true, 429: true, 500: true, 502: true, 504: true}

// IsBlocked reports whether the error chain contains a blocking HTTP status
// (403, 412, 503) and returns the code.
func IsBlocked(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) && blockingStatuses[se.Code] {
		return se.Code, true
	}
	return 0, false
}

// StatusCode extracts the HTTP status from the error chain, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsTransient reports whether an error is safe to retry: retryable HTTP
// statuses, network timeouts, and common connection-level failures.
// Blocking statuses are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return retryableStatuses[se.Code]
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped transport errors from net/http lose their type; fall back to
	// message matching.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTimeout reports whether the error chain is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
