package app

import (
	"fmt"
	"net/http"
)

// DomainError is the error shape the HTTP layer knows how to render. Anything
// else that bubbles up from the service becomes a generic 500.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// validationError covers malformed intake payloads: missing fields, ratings
// outside the 1..10 scale.
func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

// notFoundError covers lookups against catalog entities that do not exist,
// such as reviews referencing an unknown equipment ID.
func notFoundError(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}
