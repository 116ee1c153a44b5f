package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code is a short, stable machine-readable error category. Components are
// free to use their own string codes (e.g. "PAYMENT_DECLINED") alongside the
// standard set below.
type Code string

const (
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeAlreadyExists       Code = "ALREADY_EXISTS"
	CodeFailedPrecondition  Code = "FAILED_PRECONDITION"
	CodeUnavailable         Code = "UNAVAILABLE"
	CodeTimeout             Code = "TIMEOUT"
	CodeInternal            Code = "INTERNAL"
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodePermissionDenied    Code = "PERMISSION_DENIED"
)

// AppError is the structured error type used across the module. Message is
// the human-readable description; Cause is the wrapped underlying error, if
// any, and is preserved through Unwrap so errors.Is/errors.As keep working.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New constructs an AppError with an explicit code. cause may be nil.
func New(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// InvalidArgument builds an AppError with CodeInvalidArgument.
func InvalidArgument(message string, cause error) *AppError {
	return New(CodeInvalidArgument, message, cause)
}

// NotFound builds an AppError with CodeNotFound.
func NotFound(message string, cause error) *AppError {
	return New(CodeNotFound, message, cause)
}

// AlreadyExists builds an AppError with CodeAlreadyExists.
func AlreadyExists(message string, cause error) *AppError {
	return New(CodeAlreadyExists, message, cause)
}

// FailedPrecondition builds an AppError with CodeFailedPrecondition.
func FailedPrecondition(message string, cause error) *AppError {
	return New(CodeFailedPrecondition, message, cause)
}

// Unavailable builds an AppError with CodeUnavailable.
func Unavailable(message string, cause error) *AppError {
	return New(CodeUnavailable, message, cause)
}

// Timeout builds an AppError with CodeTimeout.
func Timeout(message string, cause error) *AppError {
	return New(CodeTimeout, message, cause)
}

// Internal builds an AppError with CodeInternal.
func Internal(message string, cause error) *AppError {
	return New(CodeInternal, message, cause)
}

// Unauthenticated builds an AppError with CodeUnauthenticated.
func Unauthenticated(message string, cause error) *AppError {
	return New(CodeUnauthenticated, message, cause)
}

// PermissionDenied builds an AppError with CodePermissionDenied.
func PermissionDenied(message string, cause error) *AppError {
	return New(CodePermissionDenied, message, cause)
}

// Wrap attaches message to err under CodeInternal, preserving err as the
// Cause. If err is already an *AppError its code is kept instead of being
// downgraded to Internal.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return &AppError{Code: ae.Code, Message: message, Cause: err}
	}
	return &AppError{Code: CodeInternal, Message: message, Cause: err}
}

// Is delegates to the standard library so AppError chains interoperate with
// sentinel errors from other packages.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As delegates to the standard library.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// HTTPStatus maps an error's Code to the closest HTTP status. Errors that
// are not an *AppError map to 500.
func HTTPStatus(err error) int {
	var ae *AppError
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Code {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeFailedPrecondition:
		return http.StatusPreconditionFailed
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// GRPCStatus lets an *AppError satisfy the interface grpc's status package
// looks for, so returning one from a gRPC handler yields the right code
// without the caller ever importing pkg/errors themselves.
func (e *AppError) GRPCStatus() *status.Status {
	return status.New(grpcCode(e.Code), e.Message)
}

func grpcCode(c Code) codes.Code {
	switch c {
	case CodeInvalidArgument:
		return codes.InvalidArgument
	case CodeNotFound:
		return codes.NotFound
	case CodeAlreadyExists:
		return codes.AlreadyExists
	case CodeFailedPrecondition:
		return codes.FailedPrecondition
	case CodeUnavailable:
		return codes.Unavailable
	case CodeTimeout:
		return codes.DeadlineExceeded
	case CodeUnauthenticated:
		return codes.Unauthenticated
	case CodePermissionDenied:
		return codes.PermissionDenied
	default:
		return codes.Internal
	}
}
