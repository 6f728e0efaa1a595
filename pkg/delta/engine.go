package delta

import (
	"sort"
	"strings"

	"sanbot-be/pkg/tabular"

	"github.com/shopspring/decimal"
)

// Engine computes per-entity deltas for a given column spec.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

type sideValue struct {
	value decimal.Decimal
	name  string
}

// Compute builds an index per side, takes the union of entity keys and emits
// one Record per key. Rows with a non-numeric metric are excluded from the
// delta and counted as unparseable.
func (e *Engine) Compute(file1, file2 *tabular.Table, spec Spec) (*Result, error) {
	for i, t := range []*tabular.Table{file1, file2} {
		if !t.HasColumn(spec.EntityColumn) {
			return nil, &SchemaError{Column: spec.EntityColumn, FileIndex: i + 1}
		}
		if !t.HasColumn(spec.MetricColumn) {
			return nil, &SchemaError{Column: spec.MetricColumn, FileIndex: i + 1}
		}
	}

	unparseable := 0
	idx1 := buildIndex(file1, spec, &unparseable)
	idx2 := buildIndex(file2, spec, &unparseable)
	if len(idx1) == 0 && len(idx2) == 0 {
		return nil, &ComputationError{Reason: "all metric values are unparseable"}
	}

	keys := unionKeys(idx1, idx2)
	records := make([]Record, 0, len(keys))
	both := 0
	added := 0
	removed := 0
	var absDeltas []decimal.Decimal

	for _, key := range keys {
		v1, ok1 := idx1[key]
		v2, ok2 := idx2[key]
		rec := Record{Key: key}
		switch {
		case ok1 && ok2:
			rec.Presence = PresenceBoth
			val1 := v1.value
			val2 := v2.value
			d := val2.Sub(val1)
			rec.Value1 = &val1
			rec.Value2 = &val2
			rec.Delta = &d
			rec.Name = pickName(v2.name, v1.name)
			both++
			absDeltas = append(absDeltas, d.Abs())
		case ok2:
			rec.Presence = PresenceAdded
			val2 := v2.value
			rec.Value2 = &val2
			rec.Name = v2.name
			added++
		default:
			rec.Presence = PresenceRemoved
			val1 := v1.value
			rec.Value1 = &val1
			rec.Name = v1.name
			removed++
		}
		records = append(records, rec)
	}

	if both == 0 {
		return nil, &ComputationError{Reason: "no overlapping entities between the two files"}
	}

	summary := Summary{
		Compared:       len(records),
		Both:           both,
		Added:          added,
		Removed:        removed,
		Unparseable:    unparseable,
		MeanAbsDelta:   mean(absDeltas),
		MedianAbsDelta: median(absDeltas),
	}
	return &Result{Records: records, Summary: summary}, nil
}

// buildIndex maps entity key to metric value for one side. Duplicate keys
// within one file resolve last-write-wins; this is a documented policy, not
// an accident of iteration order.
func buildIndex(t *tabular.Table, spec Spec, unparseable *int) map[string]sideValue {
	idx := make(map[string]sideValue, len(t.Rows))
	for _, row := range t.Rows {
		key, ok := row.Get(spec.EntityColumn)
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		raw, ok := row.Get(spec.MetricColumn)
		if !ok {
			continue
		}
		value, err := parseMetric(raw)
		if err != nil {
			*unparseable++
			continue
		}
		name := key
		if spec.NameColumn != "" {
			if n, ok := row.Get(spec.NameColumn); ok && n != "" {
				name = n
			}
		}
		idx[key] = sideValue{value: value, name: name}
	}
	return idx
}

// parseMetric coerces a cell to a decimal, tolerating thousands separators.
func parseMetric(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	return decimal.NewFromString(cleaned)
}

func unionKeys(a, b map[string]sideValue) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func pickName(primary, fallback string) string {
	if primary != "" {
		return primary
	}
	return fallback
}

func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

func median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := append([]decimal.Decimal(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}
