package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable machine-readable error codes surfaced to clients. Clients use
// these to distinguish "fix your input and retry" from "permanently
// inapplicable"; the codes never change even if messages do.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvariantViolated  = "INVARIANT_VIOLATED"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeOrderAlreadyPaid   = "ORDER_ALREADY_PAID"
	CodeOrderNotPaid       = "ORDER_NOT_PAID"
	CodeInvalidOrderStatus = "INVALID_ORDER_STATUS"
	CodeAmountMismatch     = "PAYMENT_AMOUNT_MISMATCH"
	CodePaymentFailed      = "PAYMENT_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is a business-rule failure carrying the HTTP status it maps to,
// a stable code, and a human-readable message. It propagates unchanged
// from the service layer to the HTTP boundary.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an Error with an explicit HTTP status.
func NewError(status int, code, message string) *Error {
	return &Error{HTTPStatus: status, Code: code, Message: message}
}

// Validation is a 400 caller-input failure.
func Validation(message string) *Error {
	return NewError(http.StatusBadRequest, CodeValidation, message)
}

// NotFound is a 404 for an absent (or inactive, for products) entity.
func NotFound(message string) *Error {
	return NewError(http.StatusNotFound, CodeNotFound, message)
}

// Forbidden is a 403 ownership/role rejection.
func Forbidden() *Error {
	return NewError(http.StatusForbidden, CodeForbidden, "Not allowed")
}

// Unauthorized is a 401 missing/invalid credential or signature.
func Unauthorized(message string) *Error {
	return NewError(http.StatusUnauthorized, CodeUnauthorized, message)
}

// Conflict is a 409 business-invariant or state-machine violation.
func Conflict(code, message string) *Error {
	return NewError(http.StatusConflict, code, message)
}

// AsError extracts a typed Error from an error chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
