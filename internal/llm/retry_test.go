package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("RATE LIMIT exceeded"), true},
		{"quota", errors.New("quota exceeded for quota metric"), true},
		{"429", errors.New("googleapi: Error 429"), true},
		{"503", errors.New("503 service unavailable"), true},
		{"timeout", errors.New("context deadline exceeded: timeout"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"bad request", errors.New("invalid prompt format"), false},
		{"not found", errors.New("model not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryableError(tt.err))
		})
	}
}

func TestRotatableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"quota", errors.New("quota exceeded"), true},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED"), true},
		{"bad api key", errors.New("API key not valid"), true},
		{"permission", errors.New("permission denied"), true},
		{"transient 502", errors.New("502 bad gateway"), true},
		{"bad request", errors.New("invalid prompt format"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rotatableError(tt.err))
		})
	}
}
