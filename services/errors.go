package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error for transport mapping.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindDependency Kind = "dependency"
)

// Error codes returned to API callers
const (
	CodeNoItems              = "NO_ITEMS"
	CodeValidation           = "VALIDATION_ERROR"
	CodeProductNotFound      = "PRODUCT_NOT_FOUND"
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeProductUnavailable   = "PRODUCT_UNAVAILABLE"
	CodeInvalidStatus        = "INVALID_STATUS"
	CodeRoleForbidden        = "ROLE_FORBIDDEN"
	CodeOrderNotFound        = "ORDER_NOT_FOUND"
	CodeDriverNotFound       = "DRIVER_NOT_FOUND"
	CodeAlreadyClaimed       = "ALREADY_CLAIMED"
	CodeClaimLost            = "CLAIM_LOST"
	CodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeDatabase             = "DATABASE_ERROR"
)

// Error is the domain error carried from services to controllers
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind onto a response status
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WithDetails returns a copy of e carrying details
func (e *Error) WithDetails(details interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func ValidationError(code, message string) *Error {
	return newError(KindValidation, code, message)
}

func NotFoundError(code, message string) *Error {
	return newError(KindNotFound, code, message)
}

func ForbiddenError(message string) *Error {
	return newError(KindForbidden, CodeRoleForbidden, message)
}

func ConflictError(code, message string) *Error {
	return newError(KindConflict, code, message)
}

// DependencyError wraps a storage or provider failure
func DependencyError(message string, err error) *Error {
	e := newError(KindDependency, CodeDatabase, message)
	e.Err = err
	return e
}

// AsError extracts a *Error from err. Any other non-nil error becomes a dependency error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return DependencyError("Internal error", err)
}

// IsCode reports whether err is an *Error with the given code
func IsCode(err error, code string) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}
