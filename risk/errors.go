/*
errors.go - Centralized error types for the risk engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The api and cmd layers map these onto HTTP statuses and exit codes.

ERROR CATEGORIES:
  1. Schema errors   - Required input columns absent (fatal, no partial output)
  2. Envelope errors - Re-uploaded file lacks expected structure
  3. Lookup errors   - Unknown sessions, offices, remark values

RECOVERY RULES:
  - Unparseable date cells are NOT errors: those rows are silently dropped.
  - Zero flagged offices is NOT an error: it is a valid, displayable state.
  - Missing footer metadata in a re-uploaded envelope recovers to defaults.
*/
package risk

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingColumns is the sentinel under every SchemaError.
	ErrMissingColumns = errors.New("required columns missing")

	// ErrInvalidEnvelope is the sentinel under every EnvelopeFormatError.
	ErrInvalidEnvelope = errors.New("invalid report envelope")

	// ErrUnknownOffice is returned when a remark update names an office
	// not present in the session.
	ErrUnknownOffice = errors.New("office not found in session")

	// ErrInvalidRemark is returned when a remark update carries a value
	// outside the assignable set.
	ErrInvalidRemark = errors.New("invalid remark state")

	// ErrSessionNotFound is returned when a session ID does not resolve.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyInput is returned when an uploaded file has no data rows at
	// all (a header alone, or nothing).
	ErrEmptyInput = errors.New("no data rows in input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SchemaError reports the exact set of required columns absent from an
// uploaded file. Classification aborts; nothing is partially processed.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing columns: %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrMissingColumns }

// EnvelopeFormatError reports a structural problem in a re-uploaded
// envelope, such as a missing Office Name or Office Type column.
type EnvelopeFormatError struct {
	Reason string
}

func (e *EnvelopeFormatError) Error() string {
	return fmt.Sprintf("invalid envelope: %s", e.Reason)
}

func (e *EnvelopeFormatError) Unwrap() error { return ErrInvalidEnvelope }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingColumns) ||
		errors.Is(err, ErrInvalidEnvelope) ||
		errors.Is(err, ErrInvalidRemark) ||
		errors.Is(err, ErrEmptyInput)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrUnknownOffice)
}
