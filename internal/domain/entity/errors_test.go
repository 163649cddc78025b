package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "simple validation error",
			field:    "email",
			message:  "invalid format",
			expected: `validation error on field "email": invalid format`,
		},
		{
			name:     "required field error",
			field:    "username",
			message:  "required",
			expected: `validation error on field "username": required`,
		},
		{
			name:     "empty field name",
			field:    "",
			message:  "test message",
			expected: `validation error on field "": test message`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ValidationError{Field: tt.field, Message: tt.message}
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNetworkError,
		ErrTimeout,
		ErrInvalidFeed,
		ErrArticleDiscoveryFailed,
		ErrContentFetchError,
		ErrCircuitOpen,
		ErrFileSystemError,
		ErrParsingError,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "sentinel %v should not match %v", a, b)
		}
	}
}

func TestSentinelErrors_WrapAndUnwrap(t *testing.T) {
	wrapped := errors.Join(ErrTimeout, errors.New("feed request exceeded 10s"))
	assert.True(t, errors.Is(wrapped, ErrTimeout))
}
