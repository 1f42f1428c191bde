package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrLockNotObtained aborts the whole run. Safe to retry by re-invocation.
var ErrLockNotObtained = errors.New("posting lock not obtained")

// SchemaError: a required column is missing from a source table. Fatal for the run.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: table %q is missing required column %q", e.Table, e.Column)
}

// ValidationError rejects a single source row; the run continues with the next row.
type ValidationError struct {
	Table  string
	LineId string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s line %q: %s", e.Table, e.LineId, e.Reason)
}

// IntegrityError: a persisted sync counter exceeds its source total.
// Never auto-repaired; the line stays skipped until corrected by hand.
type IntegrityError struct {
	LineId    string
	Requested decimal.Decimal
	Synced    decimal.Decimal
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: line %q: qty_synced %s exceeds requested %s", e.LineId, e.Synced, e.Requested)
}
