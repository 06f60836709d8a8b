package encoder

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "message only",
			err:      newError(KindNotInitialized, "OpenAI client is not initialized.", nil),
			expected: "OpenAI client is not initialized.",
		},
		{
			name:     "message with cause",
			err:      newError(KindCallFailed, "OpenAI API call failed.", errors.New("Non-OpenAIError")),
			expected: "OpenAI API call failed. Error: Non-OpenAIError",
		},
		{
			name:     "kind when message is empty",
			err:      &Error{Kind: KindNotFitted},
			expected: "not_fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorIs(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("encode routes: %w", newError(KindCallFailed, "OpenAI API call failed.", cause))

	assert.ErrorIs(t, err, ErrCallFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNoEmbeddingReturned)
	assert.Equal(t, KindCallFailed, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(cause))
	assert.Equal(t, Kind(""), KindOf(nil))
}
