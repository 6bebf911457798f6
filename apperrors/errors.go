package apperrors

import (
	"errors"
	"fmt"
)

// AppError is the structured failure returned by services. The transport layer
// maps it onto the wire response (success flag + message) without leaking
// internals to the client.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidParameters(msg string) error {
	return New(CodeInvalidParameters, msg)
}

func NoActiveSession(msg string) error {
	return New(CodeNoActiveSession, msg)
}

func DecryptionFailed(msg string) error {
	return New(CodeDecryptionFailed, msg)
}

func NotAuthenticated(msg string) error {
	return New(CodeNotAuthenticated, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func AlreadyExists(msg string) error {
	return New(CodeAlreadyExists, msg)
}

func PersistenceUnavailable(msg string, cause error) error {
	return Wrap(CodePersistenceUnavailable, msg, cause)
}

func Internal(msg string) error {
	return New(CodeInternal, msg)
}

// CodeOf extracts the taxonomy code from any error, CodeUnknown if the error
// is not an AppError.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
