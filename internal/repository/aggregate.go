package repository

// Aggregate arithmetic for a store's stored (avg_rating, rating_count)
// pair. These are pure functions so the recomputation rules can be
// exercised without a database. Both run inside the rating submission
// transaction, against values read under the store row lock.

// AverageAfterInsert returns the new average and count after a first
// rating from a user is added to a store holding the given aggregate.
func AverageAfterInsert(avg float64, count int64, score int) (float64, int64) {
	newCount := count + 1
	return (avg*float64(count) + float64(score)) / float64(newCount), newCount
}

// AverageAfterUpdate returns the new average after a user's existing
// rating changes from oldScore to newScore. The count is unchanged.
// A zero count never divides: the incoming score is taken directly.
func AverageAfterUpdate(avg float64, count int64, oldScore, newScore int) float64 {
	if count <= 0 {
		return float64(newScore)
	}
	return (avg*float64(count) - float64(oldScore) + float64(newScore)) / float64(count)
}
