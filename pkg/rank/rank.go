// Package rank orders delta records and slices them into fixed-size groups
// for rendering.
package rank

import (
	"sort"

	"sanbot-be/pkg/delta"
)

// Mode is the rendering decision for a whole result set.
type Mode string

const (
	ModeText  Mode = "text"
	ModeChart Mode = "chart"
)

// Group is one rank-ordered slice of the result set. RankStart/RankEnd are
// 1-based and inclusive.
type Group struct {
	Index     int
	RankStart int
	RankEnd   int
	Records   []delta.Record
}

// Ranked is the sorted, partitioned result set with a single rendering-mode
// decision applied to all groups.
type Ranked struct {
	Records []delta.Record // full sorted sequence
	Groups  []Group
	Mode    Mode
	Total   int
}

// Ranker sorts by absolute delta and partitions into groups of GroupSize.
type Ranker struct {
	GroupSize      int
	ChartThreshold int
}

func NewRanker(groupSize, chartThreshold int) *Ranker {
	return &Ranker{GroupSize: groupSize, ChartThreshold: chartThreshold}
}

// Rank orders records by absolute delta descending, ties broken by entity
// key ascending so identical input always yields identical output. Records
// without a delta (added/removed entities) sort after all measurable ones,
// among themselves by key.
func (r *Ranker) Rank(records []delta.Record, chartOriented bool) *Ranked {
	sorted := append([]delta.Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		ai, okI := sorted[i].AbsDelta()
		aj, okJ := sorted[j].AbsDelta()
		switch {
		case okI && okJ:
			if !ai.Equal(aj) {
				return ai.GreaterThan(aj)
			}
			return sorted[i].Key < sorted[j].Key
		case okI:
			return true
		case okJ:
			return false
		default:
			return sorted[i].Key < sorted[j].Key
		}
	})

	groupSize := r.GroupSize
	if groupSize <= 0 {
		groupSize = len(sorted)
	}

	var groups []Group
	for start := 0; start < len(sorted); start += groupSize {
		end := start + groupSize
		if end > len(sorted) {
			end = len(sorted)
		}
		groups = append(groups, Group{
			Index:     len(groups),
			RankStart: start + 1,
			RankEnd:   end,
			Records:   sorted[start:end],
		})
	}

	mode := ModeText
	if chartOriented || len(sorted) > r.ChartThreshold {
		mode = ModeChart
	}

	return &Ranked{
		Records: sorted,
		Groups:  groups,
		Mode:    mode,
		Total:   len(sorted),
	}
}
