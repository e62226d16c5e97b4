package utils

import "fmt"

type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

func (appErr *AppError) Unwrap() error {
	return appErr.Origin
}

// Standard error codes for the application
const (
	// Core messaging error taxonomy
	ErrValidation   = "VALIDATION_ERROR"   // malformed input, never retried
	ErrConnectivity = "CONNECTIVITY_ERROR" // store unreachable or timed out, retryable by caller policy
	ErrQuota        = "QUOTA_ERROR"        // object store rejected on size/quota
	ErrConflict     = "CONFLICT_ERROR"     // concurrent-create race, resolved internally

	// Resource errors
	ErrNotFound = "NOT_FOUND"

	// Authentication/Authorization errors
	ErrUnauthorized = "UNAUTHORIZED"
	ErrForbidden    = "FORBIDDEN" // User is authenticated but is not a participant
	ErrInvalidToken = "INVALID_TOKEN"

	// Actor communication errors
	ErrActorTimeout = "ACTOR_TIMEOUT"

	// Rate limiting
	ErrTooManyRequests = "TOO_MANY_REQUESTS"
)

// Error creation helper functions
func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

// Specific error creators for common cases
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

func NewConnectivityError(operation string, originalErr error) *AppError {
	return &AppError{
		Code:    ErrConnectivity,
		Message: "Store unreachable during " + operation,
		Origin:  originalErr,
	}
}

func NewQuotaError(message string, originalErr error) *AppError {
	return &AppError{
		Code:    ErrQuota,
		Message: message,
		Origin:  originalErr,
	}
}

func NewNotFoundError(what string, id string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", what, id),
	}
}

func NewUnauthorizedError(reason string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "Unauthorized: " + reason,
	}
}

func NewForbiddenError(reason string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: "Forbidden: " + reason,
	}
}

func NewActorTimeoutError(actorName string) *AppError {
	return &AppError{
		Code:    ErrActorTimeout,
		Message: "Actor communication timeout: " + actorName,
	}
}

// Helper method to check if an error is of a specific type
func IsErrorCode(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// WrapOperation prefixes an AppError with the operation and conversation
// it failed in, preserving the code so the caller can still branch on it.
func WrapOperation(operation string, conversationID string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: fmt.Sprintf("%s (conversation %s): %s", operation, conversationID, appErr.Message),
			Origin:  appErr.Origin,
		}
	}
	return NewAppError(ErrConnectivity, fmt.Sprintf("%s (conversation %s) failed", operation, conversationID), err)
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case ErrNotFound:
		return 404 // http.StatusNotFound
	case ErrValidation:
		return 400 // http.StatusBadRequest
	case ErrUnauthorized, ErrInvalidToken:
		return 401 // http.StatusUnauthorized
	case ErrForbidden:
		return 403 // http.StatusForbidden
	case ErrConflict:
		return 409 // http.StatusConflict
	case ErrQuota:
		return 413 // http.StatusRequestEntityTooLarge
	case ErrTooManyRequests:
		return 429 // http.StatusTooManyRequests
	case ErrConnectivity, ErrActorTimeout:
		return 503 // http.StatusServiceUnavailable
	default:
		return 500 // http.StatusInternalServerError for unknown errors
	}
}
