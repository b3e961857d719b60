package audit

import (
	"errors"
	"fmt"
)

// Error represents a failure detected while generating or flushing audit
// work units.
//
// Audit errors include:
//   - No active transaction: a revision-worthy mutation fired outside a
//     transaction (programmer/configuration error)
//   - Unsupported mapping: an incomplete or unimplemented mapping path
//   - Misuse: an API contract violation with a descriptive message
//
// All audit errors are fatal to the enclosing flush/transaction and are
// never retried at this layer.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// EntityName identifies the affected entity type, when known.
	EntityName string

	// Property identifies the affected property, when known.
	Property string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes audit errors.
type ErrorCode string

const (
	// ErrCodeNoActiveTransaction indicates a revision-worthy mutation
	// occurred with no transaction in progress.
	ErrCodeNoActiveTransaction ErrorCode = "TX_NOT_ACTIVE"

	// ErrCodeUnsupportedMapping indicates an incomplete or unsupported
	// mapping configuration was hit.
	ErrCodeUnsupportedMapping ErrorCode = "UNSUPPORTED_MAPPING"

	// ErrCodeMisuse indicates an API contract violation.
	ErrCodeMisuse ErrorCode = "MISUSE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.EntityName != "" && e.Property != "" {
		return fmt.Sprintf("%s: %s (entity=%s, property=%s)", e.Code, e.Message, e.EntityName, e.Property)
	}
	if e.EntityName != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.EntityName)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNoActiveTransaction returns true if the error is a missing-transaction
// precondition failure. Uses errors.As to handle wrapped errors.
func IsNoActiveTransaction(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeNoActiveTransaction
	}
	return false
}

// IsUnsupportedMapping returns true if the error reports an unsupported
// mapping configuration.
func IsUnsupportedMapping(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeUnsupportedMapping
	}
	return false
}

// IsMisuse returns true if the error reports an API contract violation.
func IsMisuse(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeMisuse
	}
	return false
}

// NewNoActiveTransactionError creates an Error for a mutation event that
// fired with no transaction in progress.
func NewNoActiveTransactionError(entityName, property string) *Error {
	return &Error{
		Code:       ErrCodeNoActiveTransaction,
		Message:    "collection mutation requires an active transaction",
		EntityName: entityName,
		Property:   property,
	}
}

// NewUnsupportedMappingError creates an Error for an unimplemented or
// incomplete mapping path.
func NewUnsupportedMappingError(entityName, property, reason string) *Error {
	return &Error{
		Code:       ErrCodeUnsupportedMapping,
		Message:    reason,
		EntityName: entityName,
		Property:   property,
	}
}

// NewMisuseError creates an Error for an API contract violation.
func NewMisuseError(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeMisuse,
		Message: fmt.Sprintf(format, args...),
	}
}
