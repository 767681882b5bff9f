package httpclient

import (
	"fmt"
	"time"
)

// Kind classifies a failed exchange. The classification decides retry
// eligibility; the envelope layer decides the public wording.
type Kind int

const (
	// KindTransient covers timeouts, connection resets and 5xx responses.
	KindTransient Kind = iota
	// KindRateLimit covers HTTP 429, with an optional server-supplied delay.
	KindRateLimit
	// KindTerminal covers 4xx other than 429 and malformed payloads.
	KindTerminal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimit:
		return "rate_limit"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// ClassifiedError is the terminal failure of an exchange (or of a whole
// retry run). It carries the last observed status and kind.
type ClassifiedError struct {
	Kind       Kind
	StatusCode int           // 0 when no HTTP response was received
	Message    string        // human-readable cause, no credential material
	RetryAfter time.Duration // server-directed delay, 0 when absent
	Attempts   int           // attempts consumed when the run gave up
}

func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether the policy treats this failure as transient.
func (e *ClassifiedError) Retryable(p Policy) bool {
	if e.Kind == KindTerminal {
		return false
	}
	if e.StatusCode > 0 {
		return p.RetryableStatuses[e.StatusCode]
	}
	return p.RetryableKinds[e.Kind]
}

func terminalErr(status int, format string, args ...any) *ClassifiedError {
	return &ClassifiedError{Kind: KindTerminal, StatusCode: status, Message: fmt.Sprintf(format, args...)}
}

func transientErr(status int, format string, args ...any) *ClassifiedError {
	return &ClassifiedError{Kind: KindTransient, StatusCode: status, Message: fmt.Sprintf(format, args...)}
}
