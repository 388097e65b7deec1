// Package queue defines message payloads exchanged over the message broker.
package queue

// RatingSubmittedEvent is published after a rating transaction
// commits. It contains enough information for downstream consumers to
// log, notify, or feed analytics without querying the primary
// database. OldScore is nil for a first submission.
type RatingSubmittedEvent struct {
	RatingID    uint64 `json:"rating_id"`
	StoreID     uint64 `json:"store_id"`
	UserID      uint64 `json:"user_id"`
	Score       int    `json:"score"`
	OldScore    *int   `json:"old_score,omitempty"`
	Action      string `json:"action"` // CREATE | UPDATE
	SubmittedAt string `json:"submitted_at"`
}
