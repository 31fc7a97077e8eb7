package models

import "time"

// StatusEntry is one recorded connection-state transition.
type StatusEntry struct {
	ID         int64     `json:"id"`
	State      string    `json:"state"`
	PrevState  string    `json:"prev_state,omitempty"`
	Source     string    `json:"source"` // poll, manual, login, qrcode, recheck
	Message    string    `json:"message,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
