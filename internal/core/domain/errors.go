package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind tags a gateway failure with one of the closed set of error
// classes reported to callers and to the audit sink.
type ErrorKind string

const (
	KindSyntax      ErrorKind = "syntax_error"
	KindForbidden   ErrorKind = "forbidden_statement"
	KindNamespace   ErrorKind = "namespace_violation"
	KindParameter   ErrorKind = "parameter_error"
	KindPermission  ErrorKind = "permission_error"
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindExecution   ErrorKind = "execution_error"
)

// GatewayError is the single error type crossing the gateway boundary.
// Message carries the engine or validator message; Preview is a literal-redacted,
// truncated form of the offending query — never the full raw text.
type GatewayError struct {
	Kind       ErrorKind
	Message    string
	Preview    string
	RetryAfter time.Duration // set only for KindRateLimited
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds a GatewayError with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *GatewayError {
	return &GatewayError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies any error returned by the gateway. Errors that are not
// GatewayErrors (including wrapped ones) count as execution errors.
func KindOf(err error) ErrorKind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindExecution
}

// RetryAfter extracts the retry hint from a rate-limit rejection, or zero.
func RetryAfter(err error) time.Duration {
	var ge *GatewayError
	if errors.As(err, &ge) && ge.Kind == KindRateLimited {
		return ge.RetryAfter
	}
	return 0
}
