package session

import "time"

// State is the conversational position of one user.
type State string

const (
	StateAwaitingInstruction State = "AWAITING_INSTRUCTION"
	StateAwaitingFile1       State = "AWAITING_FILE_1"
	StateAwaitingFile2       State = "AWAITING_FILE_2"
	StateProcessing          State = "PROCESSING"
)

// FileRef is an uploaded file handle owned by the session until an analysis
// task consumes it.
type FileRef struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Ext  string `json:"ext"`
}

// Session tracks one user's progress towards a two-file comparison.
type Session struct {
	UserID         string    `json:"user_id"`
	State          State     `json:"state"`
	Instruction    string    `json:"instruction"` // empty until a valid instruction arrives
	Files          []FileRef `json:"files"`       // at most 2
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Ready reports whether the session has everything an analysis needs.
func (s *Session) Ready() bool {
	return s.Instruction != "" && len(s.Files) == 2
}

// Reset returns the session to its initial state without discarding the
// session object itself. File cleanup is the caller's responsibility.
func (s *Session) Reset() {
	s.State = StateAwaitingInstruction
	s.Instruction = ""
	s.Files = nil
}
