package worker

import "strings"

// ErrorClass buckets a transport-send failure so the retry loop knows
// whether to retry, reroute, or fail permanently, per spec §4.J.
type ErrorClass string

const (
	ClassNetwork               ErrorClass = "network"
	ClassTimeout               ErrorClass = "timeout"
	ClassTemporaryUnavailable  ErrorClass = "temporary_unavailable"
	ClassUserOffline           ErrorClass = "user_offline"
	ClassAuthenticationFailed  ErrorClass = "authentication_failed"
	ClassInvalidParameter      ErrorClass = "invalid_parameter"
	ClassOther                 ErrorClass = "other"
)

// Retryable reports whether a send failing with this class should be
// retried by the worker's own backoff loop.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ClassNetwork, ClassTimeout, ClassTemporaryUnavailable:
		return true
	default:
		return false
	}
}

// ClassifyError buckets err using a SendError's explicit class when the
// transport provides one, falling back to string-sniffing otherwise. The
// check order matches the original implementation's: user-offline first
// (it must win over a generic "unavailable" match), then timeout, network,
// temporary/unavailable, auth, invalid.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ClassOther
	}

	var sendErr *SendError
	if se, ok := err.(*SendError); ok {
		sendErr = se
	}
	if sendErr != nil && sendErr.Class != "" {
		return sendErr.Class
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user offline") || strings.Contains(msg, "users offline"):
		return ClassUserOffline
	case strings.Contains(msg, "timeout"):
		return ClassTimeout
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection"):
		return ClassNetwork
	case strings.Contains(msg, "temporary") || strings.Contains(msg, "unavailable"):
		return ClassTemporaryUnavailable
	case strings.Contains(msg, "auth") || strings.Contains(msg, "unauthorized"):
		return ClassAuthenticationFailed
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "bad request"):
		return ClassInvalidParameter
	}
	return ClassOther
}
