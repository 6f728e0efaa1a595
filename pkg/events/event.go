package events

import "time"

// Event defines the contract for analysis lifecycle events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "ANALYSIS_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent carries the common fields of concrete events.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewAnalysisCompleted records a successful analysis for a user.
func NewAnalysisCompleted(userID, instruction string, artifacts int) Event {
	return BaseEvent{
		Type: "ANALYSIS_COMPLETED",
		Data: map[string]interface{}{
			"user_id":     userID,
			"instruction": instruction,
			"artifacts":   artifacts,
		},
		OccurredAt: time.Now(),
	}
}

// NewAnalysisFailed records a failed analysis with its user-facing reason.
func NewAnalysisFailed(userID, instruction, reason string) Event {
	return BaseEvent{
		Type: "ANALYSIS_FAILED",
		Data: map[string]interface{}{
			"user_id":     userID,
			"instruction": instruction,
			"reason":      reason,
		},
		OccurredAt: time.Now(),
	}
}
