// Package report turns ranked delta results into user-deliverable text and
// chart artifacts.
package report

import (
	"fmt"
	"strings"
)

// Meta describes the comparison being reported.
type Meta struct {
	InstructionKey string
	MetricLabel    string
	File1          string
	File2          string
	EarlierTS      string // export time of the earlier file, "2006-01-02 15:04:05"
	LaterTS        string
}

// RenderError wraps an artifact-generation failure. The renderer degrades
// where it can; a RenderError only escapes when even the fallback failed.
type RenderError struct {
	Reason string
}

func (e *RenderError) Error() string {
	return "render failed: " + e.Reason
}

// Window formats the export-time window for titles: seconds trimmed, dashes
// swapped for slashes, "earlier → later".
func (m Meta) Window() string {
	if m.EarlierTS == "" || m.LaterTS == "" {
		return ""
	}
	return slashFormat(trimSeconds(m.EarlierTS)) + " → " + slashFormat(trimSeconds(m.LaterTS))
}

// Title is the self-describing chart heading, e.g.
// "战功统计 2025/11/15 23:00 → 2025/11/16 23:00".
func (m Meta) Title() string {
	w := m.Window()
	if w == "" {
		return m.MetricLabel + "统计"
	}
	return m.MetricLabel + "统计 " + w
}

func trimSeconds(ts string) string {
	parts := strings.SplitN(strings.TrimSpace(ts), " ", 2)
	if len(parts) != 2 {
		return ts
	}
	clock := strings.Split(parts[1], ":")
	if len(clock) < 3 {
		return ts
	}
	return parts[0] + " " + clock[0] + ":" + clock[1]
}

func slashFormat(ts string) string {
	parts := strings.SplitN(ts, " ", 2)
	if len(parts) != 2 {
		return ts
	}
	date := strings.Split(parts[0], "-")
	if len(date) != 3 {
		return ts
	}
	return fmt.Sprintf("%s/%s/%s %s", date[0], date[1], date[2], parts[1])
}
