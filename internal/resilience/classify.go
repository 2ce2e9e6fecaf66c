package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// ErrorClass decides both the backoff base and whether a failure damages
// trust in the upstream service.
type ErrorClass string

const (
	ClassConnection  ErrorClass = "connection"
	ClassRateLimit   ErrorClass = "rate_limit"
	ClassServerError ErrorClass = "server_error"
	ClassOther       ErrorClass = "other"
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d", e.Code)
}

// DamagesTrust reports whether failures of this class count against the breaker.
func (c ErrorClass) DamagesTrust() bool {
	return c == ClassRateLimit || c == ClassServerError
}

// Backoff is base(class) * 2^attempt, attempt counted from zero.
func (c ErrorClass) Backoff(attempt int) time.Duration {
	var base time.Duration
	switch c {
	case ClassConnection:
		base = 500 * time.Millisecond
	case ClassRateLimit:
		base = 2000 * time.Millisecond
	default:
		base = 300 * time.Millisecond
	}
	return base * (1 << uint(attempt))
}

// Classify maps an error onto an ErrorClass. Typed errors are checked first,
// then the message is inspected.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassOther
	}

	var se *StatusError
	if errors.As(err, &se) {
		return classifyStatus(se.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassConnection
	}

	msg := strings.ToLower(err.Error())
	if code := extractStatusCode(msg); code != 0 {
		if class := classifyStatus(code); class != ClassOther {
			return class
		}
	}
	switch {
	case isRateLimit(msg):
		return ClassRateLimit
	case isServerError(msg):
		return ClassServerError
	case isConnectionError(msg):
		return ClassConnection
	}
	return ClassOther
}

func classifyStatus(code int) ErrorClass {
	switch {
	case code == 429:
		return ClassRateLimit
	case code >= 500 && code < 600:
		return ClassServerError
	}
	return ClassOther
}

// extractStatusCode finds "http 503", "status: 429", "status code 502" and similar.
func extractStatusCode(msg string) int {
	for _, prefix := range []string{"status code ", "status code: ", "http ", "http: ", "status ", "status: "} {
		idx := strings.Index(msg, prefix)
		if idx < 0 {
			continue
		}
		numStr := strings.TrimSpace(msg[idx+len(prefix):])
		if sp := strings.IndexAny(numStr, " :,;)"); sp > 0 {
			numStr = numStr[:sp]
		}
		if code, err := strconv.Atoi(numStr); err == nil && code >= 100 && code < 600 {
			return code
		}
	}
	return 0
}

func isRateLimit(msg string) bool {
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "ratelimit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "quota")
}

func isServerError(msg string) bool {
	return strings.Contains(msg, "5xx") ||
		strings.Contains(msg, "server error") ||
		strings.Contains(msg, "bad gateway") ||
		strings.Contains(msg, "service unavailable") ||
		strings.Contains(msg, "gateway timeout")
}

func isConnectionError(msg string) bool {
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "unreachable") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network") ||
		strings.Contains(msg, "dial ") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof") ||
		strings.Contains(msg, "tls handshake")
}
