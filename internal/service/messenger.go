package service

// Messenger is the outbound delivery capability. Retry and backoff on
// delivery failure belong to the implementation, not the analysis core.
type Messenger interface {
	SendText(userID, content string) error
	SendImage(userID string, png []byte) error
}
