package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentFailedWrapsCause(t *testing.T) {
	err := PaymentFailed(ErrInsufficientAllowance)

	assert.True(t, errors.Is(err, ErrPaymentFailed))
	assert.True(t, errors.Is(err, ErrInsufficientAllowance))
	assert.False(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, "payment failed: insufficient allowance", err.Error())

	wrapped := fmt.Errorf("subscribe: %w", err)
	assert.True(t, errors.Is(wrapped, ErrPaymentFailed))
	assert.Nil(t, PaymentFailed(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("renew: %w", ErrUnauthorized), http.StatusForbidden},
		{ErrInvalidPlan, http.StatusBadRequest},
		{ErrInvalidInput, http.StatusBadRequest},
		{PaymentFailed(ErrInsufficientBalance), http.StatusPaymentRequired},
		{ErrAlreadyCancelled, http.StatusConflict},
		{ErrNotDue, http.StatusConflict},
		{ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "error: %v", tt.err)
	}
}
