package chat

import "time"

// ContentType distinguishes message payload kinds.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentVoice ContentType = "voice"
)

// Message is the envelope around one chat turn. Content carries ciphertext in
// every persisted copy; only the transcript query hands back plaintext.
type Message struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"contentType"`
	IsSelf      bool        `json:"isSelf"`
	Timestamp   time.Time   `json:"timestamp"`
	IsRead      bool        `json:"isRead"`
}
