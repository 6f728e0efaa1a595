package tabular

import (
	"errors"
	"fmt"
	"io"
)

// Row is one normalized record: column name to raw string value. Numeric
// coercion happens downstream so a bad cell never aborts the parse.
type Row struct {
	Columns map[string]string
}

// Get returns the cell value and whether the column exists for this row.
func (r Row) Get(column string) (string, bool) {
	v, ok := r.Columns[column]
	return v, ok
}

// Table is the normalized output of a parser: a header row plus data rows
// in source order.
type Table struct {
	Headers []string
	Rows    []Row
}

// HasColumn reports whether the header row contains the column.
func (t *Table) HasColumn(column string) bool {
	for _, h := range t.Headers {
		if h == column {
			return true
		}
	}
	return false
}

// Parser turns raw file content into a Table.
type Parser interface {
	Parse(r io.Reader) (*Table, error)
}

// ErrUnsupportedFormat is returned by the registry for declared formats with
// no registered parser.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ParseError means no rows at all could be recovered from the input.
type ParseError struct {
	File   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.File, e.Reason)
}
