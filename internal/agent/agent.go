// Package agent defines the contract shared by the Scriptwriter and
// Editor agents: both build a prompt from their input, call the text
// generation provider, and parse the response into a typed structure.
package agent

import (
	"errors"
	"fmt"
	"strings"
)

// ThinkingSink receives intermediate "thinking" text streamed by the
// model while it generates. It is invoked zero or more times before the
// final result and is used purely for observability, never control flow.
type ThinkingSink func(text string)

// Usage carries token and cost accounting for one provider call
type Usage struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Add accumulates another call's usage
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CostUSD += other.CostUSD
}

// TransportError wraps a network or provider failure. Transient: the
// controller retries these with backoff.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("agent transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError marks malformed or schema-violating model output.
// Retried once with a corrective prompt, then treated as a hard failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("agent output validation failed: %s", e.Reason)
}

// IsTransport reports whether err is a transport-level failure
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsValidation reports whether err is an output validation failure
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExtractJSON removes markdown code fences and surrounding prose from a
// model response, keeping only the outermost JSON object
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	// Find the first { which starts valid JSON
	startIdx := strings.Index(response, "{")
	if startIdx == -1 {
		return response
	}

	// Find the last } which ends valid JSON
	endIdx := strings.LastIndex(response, "}")
	if endIdx == -1 || endIdx < startIdx {
		return response
	}

	return response[startIdx : endIdx+1]
}

// SchemaReminder is appended to the user prompt when a validation failure
// triggers the single corrective retry
const SchemaReminder = "\n\nIMPORTANT: Your previous response did not match the required JSON schema. Respond again, strictly following the JSON format described above. Every field is required."
