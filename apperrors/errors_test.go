package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	cause := errors.New("net::ERR_NAME_NOT_RESOLVED")

	tests := []struct {
		name string
		err  error
		code Code
		soft bool
	}{
		{"nil", nil, "", false},
		{"no results", fmt.Errorf("tier 2: %w", ErrNoResults), CodeNoResults, true},
		{"interception timeout", ErrInterceptionTimeout, CodeInterceptionTimeout, true},
		{"automation", fmt.Errorf("fetch: %w", NewAutomationError("navigate", cause)), CodeAutomation, false},
		{"parse", &DocumentParseError{Err: cause}, CodeDocumentParse, false},
		{"answering", &AnsweringFailure{Stage: "generate", Err: cause}, CodeAnswering, true},
		{"unknown", cause, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.Equal(t, tt.soft, IsSoft(tt.err))
		})
	}
}

func TestAutomationErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewAutomationError("wait", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "wait")

	assert.Contains(t, NewAutomationError("session", nil).Error(), "unknown failure")
}
