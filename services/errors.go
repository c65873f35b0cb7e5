package services

import (
	"errors"
	"fmt"
)

// ErrorType decides how a DomainError reaches the client
type ErrorType string

const (
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeBudget      ErrorType = "budget"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeExternal    ErrorType = "external"
)

// DomainError is a categorised failure with optional response details.
// Two DomainErrors match under errors.Is when their types are equal.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Err == nil {
		return string(e.Type) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) Is(target error) bool {
	other, ok := target.(*DomainError)
	return ok && other.Type == e.Type
}

// WithDetail sets key in the response details and returns e
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Because returns a fresh error of e's type wrapping cause. A non-empty
// message replaces e's. Sentinels are shared, so attach details to the
// returned copy only.
func (e *DomainError) Because(message string, cause error) *DomainError {
	if message == "" {
		message = e.Message
	}
	return NewDomainError(e.Type, message, cause)
}

// NewDomainError creates a domain error with an empty details map
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Sentinels for errors.Is checks. Derive request-specific errors with Because.
var (
	ErrContentTypeNotFound = NewDomainError(ErrorTypeNotFound, "content type not found", nil)
	ErrInvalidVariant      = NewDomainError(ErrorTypeValidation, "invalid content variant", nil)

	ErrDailyBudgetExceeded = NewDomainError(ErrorTypeBudget, "daily AI cost limit reached", nil)
	ErrNoProviders         = NewDomainError(ErrorTypeUnavailable, "no AI providers configured", nil)
	ErrCompletionAbandoned = NewDomainError(ErrorTypeTimeout, "completion abandoned", nil)
	ErrProvidersFailed     = NewDomainError(ErrorTypeExternal, "all AI providers failed", nil)
)

// GetErrorType returns the type of the first DomainError in err's chain,
// or "" when there is none
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return ""
	}
	return domainErr.Type
}

// GetErrorDetails returns the details of the first DomainError in err's chain
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return nil
	}
	return domainErr.Details
}

// WrapInternal reports err as an internal failure. The message is logged,
// never sent to the client.
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
