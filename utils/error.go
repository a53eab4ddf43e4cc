package utils

import (
	"errors"
	"fmt"
)

// ErrorCode classifies application errors so transport layers can map them
// to a status without string matching.
type ErrorCode string

const (
	ErrorCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrorCodeValidation        ErrorCode = "VALIDATION"
	ErrorCodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"
	ErrorCodeConflict          ErrorCode = "CONFLICT"
	ErrorCodeInternal          ErrorCode = "INTERNAL"
)

// AppError is the typed application error raised at the point of detection.
// It propagates untouched up to the transaction boundary.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: ErrorCodeNotFound, Message: message}
}

func NewValidationError(message string) *AppError {
	return &AppError{Code: ErrorCodeValidation, Message: message}
}

func NewInsufficientStockError(message string) *AppError {
	return &AppError{Code: ErrorCodeInsufficientStock, Message: message}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: ErrorCodeInternal, Message: message, Err: err}
}

var ErrorRecordNotFound = NewNotFoundError("record not found")

// CodeOf extracts the classification of err, defaulting to internal for
// anything the application did not raise itself.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrorCodeInternal
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
