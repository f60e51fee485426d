package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"docbucket/dataaccess"
)

// ErrorType represents different types of errors for better categorization
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeConflict       ErrorType = "conflict"
	ErrorTypeInternal       ErrorType = "internal"
	ErrorTypeServiceUnavail ErrorType = "service_unavailable"
	ErrorTypeTooLarge       ErrorType = "too_large"
	ErrorTypePartial        ErrorType = "partial_failure"
)

// AppError represents a structured application error
type AppError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	UserMessage string    `json:"user_message"`
	Code        string    `json:"code,omitempty"`
	Details     any       `json:"details,omitempty"`
	StatusCode  int       `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return e.Message
}

// NewAppError creates a new AppError
func NewAppError(errorType ErrorType, message, userMessage string, statusCode int) *AppError {
	return &AppError{
		Type:        errorType,
		Message:     message,
		UserMessage: userMessage,
		StatusCode:  statusCode,
	}
}

// WithCode adds an error code to the AppError
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds details to the AppError
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func NewValidationError(message, userMessage string) *AppError {
	return NewAppError(ErrorTypeValidation, message, userMessage, http.StatusBadRequest)
}

// FromError renders a data access error. Batch failures answer 207 with one
// detail per failed element; other errors take the status of their kind.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var batch *dataaccess.BatchError
	if errors.As(err, &batch) {
		return NewAppError(ErrorTypePartial, err.Error(), "Some documents could not be written", http.StatusMultiStatus).
			WithCode("partial_batch_failure").
			WithDetails(batch.Failures)
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return NewAppError(ErrorTypeTooLarge, err.Error(), "Request body is too large", http.StatusRequestEntityTooLarge)
	}

	kind := dataaccess.KindOf(err)
	status := kind.HTTPStatus()
	appErr = NewAppError(typeForStatus(status), err.Error(), userMessage(kind), status).WithCode(kind.String())
	if de, ok := dataaccess.As(err); ok && de.ID != "" {
		appErr.WithDetails(map[string]string{"id": de.ID})
	}
	return appErr
}

func typeForStatus(status int) ErrorType {
	switch status {
	case http.StatusBadRequest:
		return ErrorTypeValidation
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusConflict:
		return ErrorTypeConflict
	case http.StatusServiceUnavailable:
		return ErrorTypeServiceUnavail
	default:
		return ErrorTypeInternal
	}
}

func userMessage(kind dataaccess.Kind) string {
	switch kind {
	case dataaccess.NotFound:
		return "Document not found"
	case dataaccess.AlreadyExists:
		return "A document with this id already exists"
	case dataaccess.MappingFailed:
		return "Document could not be converted"
	case dataaccess.InvalidArgument:
		return "Invalid request"
	case dataaccess.Transient:
		return "The store is temporarily unavailable, retry later"
	case dataaccess.NotReady:
		return "The bucket is not open"
	default:
		return "An internal error occurred"
	}
}

// ErrorResponse represents the structure of error responses
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   AppError `json:"error"`
}

// SendError sends a structured error response
func SendError(w http.ResponseWriter, r *http.Request, err *AppError) {
	log.Printf("Error [%s] %s: %s", r.Method, r.URL.Path, err.Message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)

	response := ErrorResponse{
		Success: false,
		Error:   *err,
	}
	if r.Method == http.MethodHead {
		return
	}
	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		log.Printf("Failed to encode error response: %v", encodeErr)
	}
}

// HandleError renders err with FromError
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	SendError(w, r, FromError(err))
}
