package errors

import (
	"fmt"
	"net/http"

	"kitchenline/internal/domain/entity"
	"kitchenline/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.details != "" {
		return e.message + ": " + e.details
	}

	return e.message
}

// Is matches any BaseError carrying the same error code, so WithDetails copies
// still satisfy errors.Is against the predefined value.
func (e *BaseError) Is(target error) bool {
	var other *BaseError
	if !errors.As(target, &other) {
		return false
	}

	return other.errorCode == e.errorCode
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Predefined error types
var (
	// Session errors
	ErrUnauthenticated = NewBaseError(
		http.StatusUnauthorized,
		"UNAUTHENTICATED",
		"You need to sign in first",
		"",
	)

	ErrUnauthorized = NewBaseError(
		http.StatusForbidden,
		"UNAUTHORIZED",
		"You are not allowed to perform this action",
		"",
	)

	// Login outcomes. ErrNotAuthorizedForApp never says which application the account belongs to.
	ErrAccountNotFound = NewBaseError(
		http.StatusUnauthorized,
		"ACCOUNT_NOT_FOUND",
		"No account exists for this email",
		"",
	)

	ErrInvalidCredentials = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
		"Wrong email or password",
		"",
	)

	ErrNotAuthorizedForApp = NewBaseError(
		http.StatusForbidden,
		"NOT_AUTHORIZED_FOR_APP",
		"This account is not authorized for this application",
		"",
	)

	ErrLoginUnavailable = NewBaseError(
		http.StatusServiceUnavailable,
		"LOGIN_UNAVAILABLE",
		"Sign-in is temporarily unavailable, please try again",
		"",
	)

	ErrAccountAlreadyExists = NewBaseError(
		http.StatusConflict,
		"ACCOUNT_ALREADY_EXISTS",
		"An account already exists for this email",
		"",
	)

	ErrSessionNotResolved = NewBaseError(
		http.StatusServiceUnavailable,
		"SESSION_NOT_RESOLVED",
		"The session is still being resolved",
		"",
	)

	// Store errors
	ErrTransientStore = NewBaseError(
		http.StatusServiceUnavailable,
		"TRANSIENT_STORE_ERROR",
		"The data store is temporarily unavailable, please retry",
		"",
	)

	// Order errors
	ErrOrderNotFound = NewBaseError(
		http.StatusNotFound,
		"ORDER_NOT_FOUND",
		"Order not found",
		"",
	)

	ErrOrderClosed = NewBaseError(
		http.StatusConflict,
		"ORDER_CLOSED",
		"The order is already delivered or cancelled",
		"",
	)

	// Notification errors
	ErrNotificationNotFound = NewBaseError(
		http.StatusNotFound,
		"NOTIFICATION_NOT_FOUND",
		"Notification not found",
		"",
	)

	// Actor errors
	ErrActorNotFound = NewBaseError(
		http.StatusNotFound,
		"ACTOR_NOT_FOUND",
		"Account not found",
		"",
	)

	// Media errors
	ErrUnsupportedMedia = NewBaseError(
		http.StatusUnsupportedMediaType,
		"UNSUPPORTED_MEDIA",
		"This file type is not supported",
		"",
	)

	ErrMediaTooLarge = NewBaseError(
		http.StatusRequestEntityTooLarge,
		"MEDIA_TOO_LARGE",
		"The file is too large",
		"",
	)

	// Validation-related errors
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Input validation failed",
		"",
	)

	// Transaction-related errors
	ErrTransactionFailed = NewBaseError(
		http.StatusInternalServerError,
		"TRANSACTION_FAILED",
		"Database transaction failed",
		"",
	)

	// General errors
	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"Internal server error",
		"",
	)

	ErrNotFound = NewBaseError(
		http.StatusNotFound,
		"NOT_FOUND",
		"Resource not found",
		"",
	)

	ErrConflict = NewBaseError(
		http.StatusConflict,
		"CONFLICT",
		"Resource conflict",
		"",
	)
)

// InvalidTransitionError reports an order status change whose precondition does not hold.
type InvalidTransitionError struct {
	OrderID   string
	Current   entity.OrderStatus
	Attempted entity.OrderStatus
}

// NewInvalidTransitionError creates an InvalidTransitionError.
func NewInvalidTransitionError(orderID string, current, attempted entity.OrderStatus) *InvalidTransitionError {
	return &InvalidTransitionError{OrderID: orderID, Current: current, Attempted: attempted}
}

// Error implements the error interface
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for order %s: cannot move from %s to %s", e.OrderID, e.Current, e.Attempted)
}

// HTTPCode returns the HTTP status code
func (e *InvalidTransitionError) HTTPCode() int {
	return http.StatusConflict
}

// ErrorCode returns the business error code
func (e *InvalidTransitionError) ErrorCode() string {
	return "INVALID_TRANSITION"
}

// Message returns the user-friendly error message
func (e *InvalidTransitionError) Message() string {
	return fmt.Sprintf("Cannot change order status from %s to %s", e.Current, e.Attempted)
}

// Details returns detailed error information
func (e *InvalidTransitionError) Details() string {
	return e.Error()
}

// IsInvalidTransition reports whether err carries an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError

	return errors.As(err, &target)
}

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// Unwrap exposes the driver error.
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "Database execution failed"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}
