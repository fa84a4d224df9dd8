package einvoice

import (
	"errors"
	"fmt"
)

// Common parsing errors
var (
	// ErrEmptyPayload is returned when a required QR payload is empty after
	// cleaning.
	ErrEmptyPayload = errors.New("QR payload is empty")

	// ErrPayloadTooShort is returned when no payload is long enough to hold
	// the fixed-position header fields.
	ErrPayloadTooShort = errors.New("QR payload too short; not a Taiwan e-invoice QR")

	// ErrPrefixMismatch is returned when the two payloads do not share the
	// 21-char invoice key prefix, i.e. they belong to different invoices.
	ErrPrefixMismatch = errors.New("QR pair does not look like the same invoice (prefix mismatch)")

	// ErrInvalidAmount is returned when the total-amount field is not exactly
	// 8 hexadecimal digits.
	ErrInvalidAmount = errors.New("invalid total amount hex field")

	// ErrInvalidROCDate is returned when a ROC date string is not 7 digits or
	// names an impossible calendar date.
	ErrInvalidROCDate = errors.New("invalid ROC date (expected 7 digits YYYMMDD)")
)

// ParseError wraps errors with additional context about a payload parsing failure.
type ParseError struct {
	// Op is the operation that failed (e.g., "ParsePair", "ROCDateToTime").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("einvoice: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("einvoice: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is.
func (e *ParseError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewParseError creates a new ParseError with the specified operation and underlying error.
func NewParseError(op string, err error, details string) *ParseError {
	return &ParseError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}
