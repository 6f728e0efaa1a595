// Package delta computes per-entity metric differences between two
// normalized tables.
package delta

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Presence states which side(s) an entity appeared on.
type Presence string

const (
	PresenceBoth    Presence = "both"
	PresenceAdded   Presence = "added"   // only in file 2
	PresenceRemoved Presence = "removed" // only in file 1
)

// Record is the comparison result for one entity key. Delta is nil whenever
// either side is nil.
type Record struct {
	Key      string
	Name     string // display name, when a name column is configured
	Value1   *decimal.Decimal
	Value2   *decimal.Decimal
	Delta    *decimal.Decimal // Value2 - Value1
	Presence Presence
}

// AbsDelta returns |Delta| or false when Delta is nil.
func (r Record) AbsDelta() (decimal.Decimal, bool) {
	if r.Delta == nil {
		return decimal.Decimal{}, false
	}
	return r.Delta.Abs(), true
}

// Summary aggregates a comparison.
type Summary struct {
	Compared       int // union of entity keys, equals len(Result.Records)
	Both           int
	Added          int
	Removed        int
	Unparseable    int // rows whose metric value was not numeric
	MeanAbsDelta   decimal.Decimal
	MedianAbsDelta decimal.Decimal
}

// Result is the full engine output. Records carry no particular order;
// ranking is a separate concern.
type Result struct {
	Records []Record
	Summary Summary
}

// Spec selects the columns the engine operates on.
type Spec struct {
	MetricColumn string
	EntityColumn string
	NameColumn   string // optional
}

// SchemaError means a required column is missing from one input.
type SchemaError struct {
	Column    string
	FileIndex int // 1 or 2
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("file %d is missing required column %q", e.FileIndex, e.Column)
}

// ComputationError means the inputs have nothing comparable: no overlapping
// entity keys, or every metric value failed numeric coercion.
type ComputationError struct {
	Reason string
}

func (e *ComputationError) Error() string {
	return "nothing to compare: " + e.Reason
}
