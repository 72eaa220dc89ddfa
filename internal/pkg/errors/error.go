package xerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common reusable application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal server error")
	ErrRateLimited  = errors.New("too many requests")
)

// Subscription lifecycle errors
var (
	ErrInvalidPlan      = errors.New("plan is inactive or does not exist")
	ErrAlreadyCancelled = errors.New("subscription is already cancelled")
	ErrNotDue           = errors.New("subscription is not due for auto-renewal")
	ErrPaymentFailed    = errors.New("payment failed")
)

// Payment ledger errors
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// PaymentError wraps a ledger failure so callers can match both ErrPaymentFailed
// and the specific ledger cause.
type PaymentError struct {
	Cause error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPaymentFailed.Error(), e.Cause)
}

func (e *PaymentError) Is(target error) bool {
	return target == ErrPaymentFailed
}

func (e *PaymentError) Unwrap() error {
	return e.Cause
}

// PaymentFailed wraps a ledger error. nil stays nil.
func PaymentFailed(cause error) error {
	if cause == nil {
		return nil
	}
	return &PaymentError{Cause: cause}
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// HTTPStatus maps an application error onto a response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidPlan), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrAlreadyCancelled), errors.Is(err, ErrNotDue):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
