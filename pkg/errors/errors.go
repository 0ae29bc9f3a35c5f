package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeTimeout      = "TIMEOUT"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInvalidInput = "INVALID_INPUT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeUnsupported  = "UNSUPPORTED_MEDIA_TYPE"

	CodeInvalidInterval      = "INVALID_INTERVAL"
	CodeEmptySelection       = "EMPTY_SELECTION"
	CodeNoAvailability       = "NO_AVAILABILITY"
	CodeAvailabilityConflict = "AVAILABILITY_CONFLICT"
	CodePriceChanged         = "PRICE_CHANGED"
	CodeInvalidState         = "INVALID_STATE"
	CodeInvalidBookingState  = "INVALID_BOOKING_STATE"
	CodePaymentDeclined      = "PAYMENT_DECLINED"
	CodePaymentGateway       = "PAYMENT_GATEWAY_ERROR"
	CodeConsistency          = "CONSISTENCY_ERROR"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	data, _ := json.Marshal(ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NotFoundWithID(resource, id string) *AppError {
	return NotFound(resource).WithDetails(map[string]any{
		"resource": resource,
		"id":       id,
	})
}

func Validation(message string, details map[string]any) *AppError {
	return New(CodeValidation, message, http.StatusUnprocessableEntity).WithDetails(details)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

func Internal(message string, err error) *AppError {
	return Wrap(err, CodeInternal, message, http.StatusInternalServerError)
}

func Timeout(message string) *AppError {
	return New(CodeTimeout, message, http.StatusGatewayTimeout)
}

func RateLimited() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

func UnsupportedMediaType(message string) *AppError {
	return New(CodeUnsupported, message, http.StatusUnsupportedMediaType)
}

func Unavailable(service string) *AppError {
	return New(CodeUnavailable, fmt.Sprintf("%s is temporarily unavailable", service), http.StatusServiceUnavailable)
}

func InvalidInterval(message string) *AppError {
	return New(CodeInvalidInterval, message, http.StatusUnprocessableEntity)
}

func EmptySelection() *AppError {
	return New(CodeEmptySelection, "At least one room must be selected", http.StatusUnprocessableEntity)
}

func NoAvailability(categoryID string) *AppError {
	return New(CodeNoAvailability, "No rooms are available for the requested dates", http.StatusConflict).
		WithDetails(map[string]any{"category_id": categoryID})
}

func AvailabilityConflict(roomIDs ...string) *AppError {
	e := New(CodeAvailabilityConflict, "One or more selected rooms were reserved by another guest", http.StatusConflict)
	if len(roomIDs) > 0 {
		e.Details = map[string]any{"room_ids": roomIDs}
	}
	return e
}

func PriceChanged(expected, actual int64) *AppError {
	return New(CodePriceChanged, "The price changed since it was reviewed", http.StatusConflict).
		WithDetails(map[string]any{"expected_total": expected, "current_total": actual})
}

func InvalidState(message string) *AppError {
	return New(CodeInvalidState, message, http.StatusConflict)
}

func InvalidBookingState(id, status, paymentStatus string) *AppError {
	return New(CodeInvalidBookingState, "Booking is not awaiting payment", http.StatusConflict).
		WithDetails(map[string]any{"id": id, "status": status, "payment_status": paymentStatus})
}

func PaymentDeclined(reason string) *AppError {
	return New(CodePaymentDeclined, "Payment was declined", http.StatusPaymentRequired).
		WithDetails(map[string]any{"reason": reason})
}

func PaymentGateway(message string, err error) *AppError {
	return Wrap(err, CodePaymentGateway, message, http.StatusBadGateway)
}

// Consistency marks a partial write after money has moved. Callers must never retry it.
func Consistency(message string, err error) *AppError {
	return Wrap(err, CodeConsistency, message, http.StatusInternalServerError)
}

// Storage converts a persistence failure. AppErrors pass through and deadline
// overruns become a retriable timeout instead of an internal error.
func Storage(message string, err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, CodeTimeout, message+": timed out", http.StatusGatewayTimeout)
	}
	return Internal(message, err)
}

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// IsRetriable reports whether the caller may try the operation again
// after re-reading state.
func IsRetriable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeNoAvailability, CodeAvailabilityConflict, CodePriceChanged,
		CodePaymentDeclined, CodePaymentGateway, CodeTimeout, CodeUnavailable:
		return true
	default:
		return false
	}
}
