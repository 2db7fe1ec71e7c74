// internal/models/chat.go
package models

// ChatMessage is a single lobby chat line. At is unix milliseconds.
type ChatMessage struct {
	ID           string `json:"id"`
	At           int64  `json:"at"`
	FromPlayerID string `json:"fromPlayerId"`
	FromName     string `json:"fromName"`
	Text         string `json:"text"`
}
