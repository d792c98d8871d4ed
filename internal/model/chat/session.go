package chat

import "time"

// Status tracks where a session is in its lifecycle. Transitions only move
// forward: active -> ended -> deleted; delete-all may skip ended.
type Status string

const (
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
	StatusDeleted Status = "deleted"
)

// Session captures one bounded anonymous conversation. The persisted form is
// an encrypted blob; plaintext fields exist only in memory.
type Session struct {
	ID             string    `json:"id"`
	StartTime      time.Time `json:"startTime"`
	IsAnonymous    bool      `json:"isAnonymous"`
	PartnerID      string    `json:"partnerId,omitempty"`
	PartnerCountry string    `json:"partnerCountry,omitempty"`
	Messages       []Message `json:"messages"`
	Status         Status    `json:"status"`
}
