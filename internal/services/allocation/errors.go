package allocation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchema marks input that cannot be allocated: missing columns or bad cells.
	ErrSchema = errors.New("allocation: schema error")
	// ErrConsistency marks a broken conservation check after allocation.
	ErrConsistency = errors.New("allocation: consistency error")
)

// SchemaError names the required columns a table lacks.
type SchemaError struct {
	Table   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s table missing columns: %s", e.Table, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// RecordError identifies a single offending cell. Row is 1-based over data rows.
type RecordError struct {
	Table  string
	Row    int
	Column string
	Value  string
	Reason string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s row %d, column %s (%q): %s", e.Table, e.Row, e.Column, e.Value, e.Reason)
}

func (e *RecordError) Unwrap() error { return ErrSchema }

type ConsistencyError struct {
	Allocated      float64
	Leftover       float64
	TotalCollected float64
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("allocated %.6f + leftover %.6f does not equal collected %.6f",
		e.Allocated, e.Leftover, e.TotalCollected)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }
