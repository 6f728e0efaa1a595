package dto

// EventKind discriminates normalized inbound events. Channel-specific
// payload parsing (XML, signatures, media download) happens upstream.
type EventKind string

const (
	EventText EventKind = "text"
	EventFile EventKind = "file"
)

// InboundEvent is the only inbound shape the conversation core consumes.
type InboundEvent struct {
	UserID string       `json:"user_id"`
	Kind   EventKind    `json:"kind"`
	Text   string       `json:"text,omitempty"`
	File   *FilePayload `json:"file,omitempty"`
}

// FilePayload references a file already downloaded to local storage.
type FilePayload struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// WebhookMessage is the raw callback body posted by the messaging channel
// after upstream decryption: either a text message or a media reference.
type WebhookMessage struct {
	UserID   string `json:"user_id"`
	MsgType  string `json:"msg_type"`
	Content  string `json:"content,omitempty"`
	MediaID  string `json:"media_id,omitempty"`
	FileName string `json:"file_name,omitempty"`
}
