package attestation

import (
	"errors"
	"fmt"
)

// ErrorKind classifies attestation lifecycle failures so callers can
// decide between retrying, refetching inputs, and giving up.
type ErrorKind int

const (
	// ErrorKindNetwork covers transient transport failures; the caller may retry.
	ErrorKindNetwork ErrorKind = iota
	// ErrorKindVerifierRejected is a non-200 verifier answer; fatal for these inputs.
	ErrorKindVerifierRejected
	// ErrorKindMalformedVerifierResponse is a 200 answer missing the encoded payload.
	ErrorKindMalformedVerifierResponse
	// ErrorKindInsufficientFee signals the paid value no longer covers the live fee.
	ErrorKindInsufficientFee
	// ErrorKindTransactionReverted is a mined receipt with status 0.
	ErrorKindTransactionReverted
	// ErrorKindTimeout is a bounded wait that expired, replacements included.
	ErrorKindTimeout
	// ErrorKindCancelled is a caller-initiated abort.
	ErrorKindCancelled
	// ErrorKindProofNotYetAvailable is the expected transient state while a
	// round finalizes; retry later with an advanced round.
	ErrorKindProofNotYetAvailable
	// ErrorKindRoundDegraded marks round resolution served from fallback constants.
	ErrorKindRoundDegraded
)

// String returns the wire label of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNetwork:
		return "network_error"
	case ErrorKindVerifierRejected:
		return "verifier_rejected"
	case ErrorKindMalformedVerifierResponse:
		return "malformed_verifier_response"
	case ErrorKindInsufficientFee:
		return "insufficient_fee"
	case ErrorKindTransactionReverted:
		return "transaction_reverted"
	case ErrorKindTimeout:
		return "timeout"
	case ErrorKindCancelled:
		return "cancelled"
	case ErrorKindProofNotYetAvailable:
		return "proof_not_yet_available"
	case ErrorKindRoundDegraded:
		return "round_resolution_degraded"
	default:
		return "unknown"
	}
}

// Retryable reports whether a fresh call with the same inputs can succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindNetwork, ErrorKindTimeout, ErrorKindProofNotYetAvailable:
		return true
	default:
		return false
	}
}

// Error is a structured lifecycle error carrying enough context to
// diagnose the failure without re-running the pipeline.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
	Context map[string]any
}

// NewError creates an error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("attestation %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("attestation %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind, so sentinel comparisons work
// through wrapped chains.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithContext attaches a diagnostic key/value pair.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// KindOf extracts the kind of err, or ok=false when err is not a
// lifecycle error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
