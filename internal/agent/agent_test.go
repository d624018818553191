package agent

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"score": 8}`,
			expected: `{"score": 8}`,
		},
		{
			name:     "markdown fenced",
			input:    "```json\n{\"score\": 8}\n```",
			expected: `{"score": 8}`,
		},
		{
			name:     "surrounding prose",
			input:    "Here is my review:\n{\"score\": 8}\nHope that helps!",
			expected: `{"score": 8}`,
		},
		{
			name:     "no JSON at all",
			input:    "I cannot produce a review.",
			expected: "I cannot produce a review.",
		},
		{
			name:     "nested objects",
			input:    "```\n{\"a\": {\"b\": 1}}\n```",
			expected: `{"a": {"b": 1}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSON(tt.input))
		})
	}
}

func TestErrorClassification(t *testing.T) {
	transport := &TransportError{Err: errors.New("connection reset")}
	validation := &ValidationError{Reason: "empty scene list"}

	assert.True(t, IsTransport(transport))
	assert.False(t, IsValidation(transport))
	assert.True(t, IsValidation(validation))
	assert.False(t, IsTransport(validation))

	// Classification survives wrapping
	wrapped := fmt.Errorf("draft call: %w", transport)
	assert.True(t, IsTransport(wrapped))
	wrappedV := fmt.Errorf("parse: %w", validation)
	assert.True(t, IsValidation(wrappedV))

	assert.False(t, IsTransport(errors.New("plain")))
	assert.False(t, IsValidation(nil))
}

func TestTransportErrorUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := &TransportError{Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 100, OutputTokens: 50, CostUSD: 0.01}
	u.Add(Usage{InputTokens: 200, OutputTokens: 75, CostUSD: 0.02})

	assert.Equal(t, 300, u.InputTokens)
	assert.Equal(t, 125, u.OutputTokens)
	assert.InDelta(t, 0.03, u.CostUSD, 1e-9)
}
