package app

import (
	"fmt"
	"net/http"
)

// DomainError carries the HTTP status and machine-readable code a failure is reported with.
// Details is encoded verbatim into the error envelope, e.g. the offending field of a save.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	cause   error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// invalid reports a 400 VALIDATION_ERROR.
func invalid(message string, details any) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, details)
}

// wrapDomainError keeps err reachable through errors.Is while reporting status and code.
func wrapDomainError(err error, status int, code, message string) *DomainError {
	e := domainError(status, code, message, nil)
	e.cause = err
	return e
}
