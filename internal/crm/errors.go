// Package crm holds the vocabulary shared by the lead, order and activity
// services: the acting user, the error taxonomy and input validation.
package crm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MarvelMathesh/trackflow/internal/docstore"
)

var (
	// ErrValidation indicates a required input field is missing or malformed.
	ErrValidation = errors.New("crm: validation failed")
	// ErrNotFound indicates the referenced record is absent upstream.
	ErrNotFound = errors.New("crm: record not found")
	// ErrStoreUnavailable indicates a transient connectivity or permission failure.
	ErrStoreUnavailable = errors.New("crm: store unavailable")
	// ErrMissingActor indicates the operation was attempted without an identity.
	ErrMissingActor = errors.New("crm: actor identity required")
)

// ValidationError lists the offending fields and a message for each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s", name, e.Fields[name]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewFieldError builds a ValidationError for a single field.
func NewFieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// ServiceError tags a failure with an "<operation>.<reason>" code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

// NewServiceError wraps cause with a code derived from operation and reason.
func NewServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ErrorCode returns the ServiceError code carried by err, if any.
func ErrorCode(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}

// StoreFailure translates a docstore error into the service taxonomy and
// returns the reason used for the error code.
func StoreFailure(err error) (string, error) {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return "not_found", fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return "store_unavailable", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
