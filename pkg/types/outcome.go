package types

import "fmt"

// FailureKind is the error taxonomy for a failed analysis call.
type FailureKind string

const (
	FailJSONDecode FailureKind = "json_decode_error"
	FailConnection FailureKind = "connection_failed"
	FailTimeout    FailureKind = "timeout"
	FailAPI        FailureKind = "api_error"
	FailUnknown    FailureKind = "unknown_error"
)

// Failure describes a classified analysis error.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f *Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Outcome is the tagged result of analyzing one chunk. Exactly one of the
// two arms holds: Issues when the call succeeded (possibly empty), or
// Failure when it did not. Callers branch on OK; nothing is thrown across
// component boundaries.
type Outcome struct {
	Issues  []Issue
	Failure *Failure
}

// Success wraps a successful analysis result.
func Success(issues []Issue) Outcome {
	return Outcome{Issues: issues}
}

// Failed wraps a classified failure.
func Failed(kind FailureKind, message string) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Message: message}}
}

// Failf wraps a classified failure with a formatted message.
func Failf(kind FailureKind, format string, args ...any) Outcome {
	return Failed(kind, fmt.Sprintf(format, args...))
}

// OK reports whether the analysis call succeeded.
func (o Outcome) OK() bool {
	return o.Failure == nil
}
