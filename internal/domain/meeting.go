package domain

import "time"

// MeetingID is a client-supplied opaque identifier, unique per meeting.
type MeetingID string

// Meeting groups a set of live connections for signaling purposes.
// Membership is tracked separately by the meeting store.
type Meeting struct {
	ID        MeetingID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}
