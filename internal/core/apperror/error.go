// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the inventory ledger core
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeOverRelease            = "OVER_RELEASE"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeInvalidState           = "INVALID_STATE"
	CodeTransferFailed         = "TRANSFER_FAILED"
	CodeReceivingGate          = "RECEIVING_GATE_REJECTED"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict          = "CONFLICT"
	CodeDuplicateSerial   = "DUPLICATE_SERIAL"
	CodeDuplicateTransfer = "DUPLICATE_TRANSFER"

	// Non-fatal warning surfaced alongside successful results, never returned
	// as an error. Receiving beyond the ordered quantity is legal.
	WarnOverReceipt = "OVER_RECEIPT"
)

// AppError is the standard error type for the service.
// It implements the error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (quantities, ids, fields)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInsufficientStock creates a stock shortage error
func NewInsufficientStock(variantID string, requested, available float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient available stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"variant_id": variantID,
			"requested":  requested,
			"available":  available,
		},
	}
}

// NewOverRelease is returned when a release would push reserved quantity negative.
func NewOverRelease(variantID string, requested float64) *AppError {
	return &AppError{
		Code:       CodeOverRelease,
		Message:    "Release exceeds reserved quantity",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"variant_id": variantID,
			"requested":  requested,
		},
	}
}

// NewInvalidTransition is returned when a serial unit's current status does
// not match the expected source status of a guarded transition.
func NewInvalidTransition(unitID, from, to, current string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("Cannot transition unit from %s to %s", from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"unit_id": unitID,
			"from":    from,
			"to":      to,
			"current": current,
		},
	}
}

// NewInvalidState is returned when a transfer is not in the state an
// operation requires (including repeat calls on terminal transfers).
func NewInvalidState(transferID, current, required string) *AppError {
	return &AppError{
		Code:       CodeInvalidState,
		Message:    fmt.Sprintf("Transfer is %s, operation requires %s", current, required),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"transfer_id": transferID,
			"current":     current,
			"required":    required,
		},
	}
}

// NewDuplicateSerial is returned when a serial/IMEI already exists anywhere.
func NewDuplicateSerial(serial string) *AppError {
	return &AppError{
		Code:       CodeDuplicateSerial,
		Message:    "A unit with this serial already exists",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"serial": serial},
	}
}

// NewDuplicateTransfer is returned when an equivalent non-terminal transfer
// already exists within the duplicate-detection window.
func NewDuplicateTransfer(variantID, fromBranch, toBranch string) *AppError {
	return &AppError{
		Code:       CodeDuplicateTransfer,
		Message:    "A pending transfer for this variant between these branches already exists",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"variant_id":  variantID,
			"from_branch": fromBranch,
			"to_branch":   toBranch,
		},
	}
}

// NewConcurrentModification creates an optimistic locking error.
// Retryable: the caller should re-read and retry.
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified concurrently. Re-read and retry.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewTransferFailed wraps the error that aborted a transfer completion.
// Retryable after the caller re-reads transfer state.
func NewTransferFailed(transferID string, cause error) *AppError {
	return &AppError{
		Code:       CodeTransferFailed,
		Message:    "Transfer completion aborted, no stock was moved",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"transfer_id": transferID},
		Err:        cause,
	}
}

// NewReceivingGateRejected is returned when the configured receiving gate
// expression evaluates to false for a PO line.
func NewReceivingGateRejected(lineID string) *AppError {
	return &AppError{
		Code:       CodeReceivingGate,
		Message:    "Receiving gate rejected this purchase order line",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"po_line_id": lineID},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode checks whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return IsCode(err, CodeConcurrentModification)
}
