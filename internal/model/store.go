package model

import "time"

// Store mirrors the `stores` table.  OwnerID is a weak reference: a
// store may exist without an owner, and deleting the owner does not
// cascade to the store.
//
// AvgRating and RatingCount form the stored aggregate.  They must at
// all times equal the mean and count of the store's live rating rows
// (0 and 0 when none exist).  The pair is mutated only inside the
// rating submission transaction; reading it anywhere else is safe
// without further locking.
type Store struct {
	ID          uint64    // stores.id
	Name        string    // stores.name
	Email       string    // stores.email (may be empty)
	Address     string    // stores.address (may be empty)
	OwnerID     *uint64   // stores.owner_id (nullable)
	AvgRating   float64   // stores.avg_rating
	RatingCount int64     // stores.rating_count
	CreatedAt   time.Time // stores.created_at
	UpdatedAt   time.Time // stores.updated_at
}

// OwnedBy reports whether the given user owns this store.  Stores
// without an owner are owned by nobody.
func (s Store) OwnedBy(userID uint64) bool {
	return s.OwnerID != nil && *s.OwnerID == userID
}
