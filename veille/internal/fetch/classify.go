// CLAUDE:SUMMARY Failure classifier: maps a fetch error to an ErrorClass recorded in the fetch log.
package fetch

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ErrorClass categorizes a fetch failure.
type ErrorClass string

const (
	ClassNone      ErrorClass = ""
	ClassTemporary ErrorClass = "temporary"  // 5xx, timeout, DNS transient
	ClassForbidden ErrorClass = "forbidden"  // 403, bot wall
	ClassNotFound  ErrorClass = "not_found"  // 404, 410
	ClassAuth      ErrorClass = "auth"       // 401
	ClassRateLimit ErrorClass = "rate_limit" // 429
	ClassRejected  ErrorClass = "rejected"   // URL validator refused the target
	ClassCanceled  ErrorClass = "canceled"
	ClassUnknown   ErrorClass = "unknown"
)

// Classify determines the class of a fetch failure. A nil error is ClassNone.
// The simple-HTTP status wins over the render error since it is the last
// word on the target.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, ErrURLRejected) {
		return ClassRejected
	}
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}

	code := 0
	var se *StatusError
	if errors.As(err, &se) {
		code = se.Code
	} else {
		code = statusFromMessage(err.Error())
	}
	switch {
	case code == 429:
		return ClassRateLimit
	case code == 401:
		return ClassAuth
	case code == 403:
		return ClassForbidden
	case code == 404 || code == 410:
		return ClassNotFound
	case code >= 500 && code < 600:
		return ClassTemporary
	}

	if errors.Is(err, context.DeadlineExceeded) || isNetworkError(strings.ToLower(err.Error())) {
		return ClassTemporary
	}
	return ClassUnknown
}

// statusFromMessage extracts an HTTP status code from an error message such
// as "http 503" or "status: 404". Returns 0 if none is found.
func statusFromMessage(errMsg string) int {
	msg := strings.ToLower(errMsg)
	for _, prefix := range []string{"http ", "http: ", "status ", "status: "} {
		idx := strings.Index(msg, prefix)
		if idx < 0 {
			continue
		}
		num := strings.TrimSpace(msg[idx+len(prefix):])
		if sp := strings.IndexAny(num, " :;"); sp > 0 {
			num = num[:sp]
		}
		if code, err := strconv.Atoi(num); err == nil && code >= 100 && code < 600 {
			return code
		}
	}
	return 0
}

func isNetworkError(msg string) bool {
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "eof") ||
		strings.Contains(msg, "tls handshake") ||
		strings.Contains(msg, "net::err_")
}
