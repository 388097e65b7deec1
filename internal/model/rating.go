package model

import "time"

// Rating score bounds. Scores are whole stars.
const (
	MinScore = 1
	MaxScore = 5
)

// ValidScore reports whether a submitted score is inside [1,5].
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// Rating mirrors the `ratings` table.  The (UserID, StoreID) pair is
// unique: a user rates a given store at most once, and later
// submissions update the existing row in place.
type Rating struct {
	ID        uint64    // ratings.id
	UserID    uint64    // ratings.user_id
	StoreID   uint64    // ratings.store_id
	Score     int       // ratings.score (1..5)
	Comment   *string   // ratings.comment (nullable)
	CreatedAt time.Time // ratings.created_at
	UpdatedAt time.Time // ratings.updated_at
}
