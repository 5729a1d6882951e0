package protocol

import (
	"errors"
	"fmt"
)

// Error codes are part of the wire contract; clients branch on them.
const (
	CodeValidation       = "VALIDATION"
	CodeNotFound         = "NOT_FOUND"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeSessionNotActive = "SESSION_NOT_ACTIVE"
	CodeSessionFull      = "SESSION_FULL"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeAccessDenied     = "ACCESS_DENIED"
	CodeOperationFailed  = "OPERATION_FAILED"
)

// CoordinatorError is a rejection with a stable code. It travels back to
// the offending connection as a single error event and nothing else.
type CoordinatorError struct {
	Code    string
	Message string
}

func (e *CoordinatorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code, message string) *CoordinatorError {
	return &CoordinatorError{Code: code, Message: message}
}

func ValidationError(message string) *CoordinatorError {
	return NewError(CodeValidation, message)
}

func NotFoundError(message string) *CoordinatorError {
	return NewError(CodeNotFound, message)
}

func SessionNotFoundError(sessionID string) *CoordinatorError {
	return NewError(CodeSessionNotFound, fmt.Sprintf("session %s does not exist", sessionID))
}

func SessionNotActiveError(sessionID string) *CoordinatorError {
	return NewError(CodeSessionNotActive, fmt.Sprintf("session %s is not active", sessionID))
}

func SessionFullError(sessionID string) *CoordinatorError {
	return NewError(CodeSessionFull, fmt.Sprintf("session %s is full", sessionID))
}

func UnauthorizedError(message string) *CoordinatorError {
	return NewError(CodeUnauthorized, message)
}

func AccessDeniedError(message string) *CoordinatorError {
	return NewError(CodeAccessDenied, message)
}

func OperationFailedError() *CoordinatorError {
	return NewError(CodeOperationFailed, "operation failed")
}

// AsCoordinatorError unwraps err down to a CoordinatorError. Anything
// else is reported to the client as OPERATION_FAILED.
func AsCoordinatorError(err error) *CoordinatorError {
	var coordErr *CoordinatorError
	if errors.As(err, &coordErr) {
		return coordErr
	}
	return OperationFailedError()
}
