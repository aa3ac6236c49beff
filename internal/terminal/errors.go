package terminal

import "fmt"

// ErrorCode is the closed taxonomy for session failures. Controllers never
// return anything outside this set for an expected failure mode.
type ErrorCode string

const (
	CodeConnectionTokenFailed     ErrorCode = "CONNECTION_TOKEN_FAILED"
	CodeNoReadersFound            ErrorCode = "NO_READERS_FOUND"
	CodeReaderConnectionFailed    ErrorCode = "READER_CONNECTION_FAILED"
	CodeReaderDisconnectionFailed ErrorCode = "READER_DISCONNECTION_FAILED"
	CodeLocationIDFetchFailed     ErrorCode = "LOCATION_ID_FETCH_FAILED"
	CodePaymentIntentFailed       ErrorCode = "PAYMENT_INTENT_FAILED"
	CodePaymentCollectionFailed   ErrorCode = "PAYMENT_COLLECTION_FAILED"
	CodePaymentProcessingFailed   ErrorCode = "PAYMENT_PROCESSING_FAILED"
	CodeOperationTimeout          ErrorCode = "OPERATION_TIMEOUT"
	CodeConfigInvalid             ErrorCode = "CONFIG_INVALID"
)

// TerminalError carries a taxonomy code plus the underlying cause when one
// exists. It satisfies the error interface so it can cross SDK boundaries.
type TerminalError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *TerminalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TerminalError) Unwrap() error {
	return e.Cause
}

// NewError creates a TerminalError without an underlying cause.
func NewError(code ErrorCode, message string) *TerminalError {
	return &TerminalError{Code: code, Message: message}
}

// WrapError attaches the underlying cause so callers can still inspect it
// with errors.Is/As after the code mapping.
func WrapError(code ErrorCode, message string, cause error) *TerminalError {
	return &TerminalError{Code: code, Message: message, Cause: cause}
}

// Result is the return contract for every fallible session operation.
// Expected business failures are values, never panics or bare errors thrown
// across component boundaries.
type Result[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Err     *TerminalError `json:"error,omitempty"`
}

// Ok wraps a successful value.
func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail wraps an expected failure.
func Fail[T any](err *TerminalError) Result[T] {
	return Result[T]{Success: false, Err: err}
}

// FailCode is shorthand for Fail(NewError(code, message)).
func FailCode[T any](code ErrorCode, message string) Result[T] {
	return Result[T]{Success: false, Err: NewError(code, message)}
}
