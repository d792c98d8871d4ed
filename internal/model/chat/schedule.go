package chat

import "time"

// DeleteSchedule records when a session must be purged. At most one schedule
// exists per session; it is removed together with the session.
type DeleteSchedule struct {
	SessionID  string    `json:"sessionId"`
	DeleteTime time.Time `json:"deleteTime"`
}
