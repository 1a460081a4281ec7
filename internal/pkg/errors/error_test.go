package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", fmt.Errorf("price_id: %w", ErrInvalidInput), http.StatusBadRequest},
		{"plan", Wrap(ErrPlanResolution, "price_404"), http.StatusBadRequest},
		{"signature", ErrSignature, http.StatusBadRequest},
		{"auth", ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"not found", Wrap(ErrNotFound, "subscription"), http.StatusNotFound},
		{"conflict", ErrConflict, http.StatusConflict},
		{"stale", Wrap(ErrStaleEvent, "update"), http.StatusConflict},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"processor down", Wrap(ErrServiceUnavailable, "create customer"), http.StatusServiceUnavailable},
		{"storage", Wrap(ErrStorage, "find by user"), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Wrap(ErrStorage, "insert")))
	assert.True(t, Retryable(Wrap(ErrServiceUnavailable, "retrieve price")))
	assert.False(t, Retryable(ErrInvalidInput))
	assert.False(t, Retryable(ErrNotFound))
	assert.False(t, Retryable(nil))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
}
