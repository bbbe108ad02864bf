package services

import (
	"errors"
	"fmt"

	"github.com/fieldops/accessctl/repositories"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrPolicyNotFound   = NewDomainError(ErrorTypeNotFound, "access policy not found", nil)
	ErrCompanyNotFound  = NewDomainError(ErrorTypeNotFound, "company not found", nil)
	ErrProfileNotFound  = NewDomainError(ErrorTypeNotFound, "profile not found", nil)
	ErrAuditLogNotFound = NewDomainError(ErrorTypeNotFound, "audit log not found", nil)

	// Validation Errors
	ErrInvalidInput         = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidConditions    = NewDomainError(ErrorTypeValidation, "invalid policy conditions", nil)
	ErrInvalidActionPattern = NewDomainError(ErrorTypeValidation, "invalid action pattern", nil)

	// Authorization Errors
	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)

	// Permission Errors
	ErrForbidden   = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrNoTenant    = NewDomainError(ErrorTypeForbidden, "actor is not a member of any company", nil)
	ErrOrgMismatch = NewDomainError(ErrorTypeForbidden, "company mismatch", nil)

	// Conflict Errors
	ErrAlreadyExists = NewDomainError(ErrorTypeConflict, "record already exists", nil)

	// Internal Errors
	ErrInternal      = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError = NewDomainError(ErrorTypeInternal, "database error", nil)
)

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == t
}

// IsNotFoundError reports whether err is a not-found domain error
func IsNotFoundError(err error) bool { return hasType(err, ErrorTypeNotFound) }

// IsValidationError reports whether err is a validation domain error
func IsValidationError(err error) bool { return hasType(err, ErrorTypeValidation) }

func IsUnauthorizedError(err error) bool { return hasType(err, ErrorTypeUnauthorized) }

// IsForbiddenError covers both rule denials and cross-company access
func IsForbiddenError(err error) bool { return hasType(err, ErrorTypeForbidden) }

func IsConflictError(err error) bool { return hasType(err, ErrorTypeConflict) }

func IsInternalError(err error) bool { return hasType(err, ErrorTypeInternal) }

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// FromRepository maps a repository error onto the domain: a missing row
// becomes a copy of notFound, a unique violation a conflict, anything else a
// database error.
func FromRepository(err error, notFound *DomainError) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return NewDomainError(notFound.Type, notFound.Message, err)
	}
	if errors.Is(err, repositories.ErrDuplicate) {
		return NewDomainError(ErrAlreadyExists.Type, ErrAlreadyExists.Message, err)
	}
	return NewDomainError(ErrorTypeInternal, ErrDatabaseError.Message, err)
}
