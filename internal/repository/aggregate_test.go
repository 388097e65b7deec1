package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAverageAfterInsert(t *testing.T) {
	t.Run("first rating on a fresh store", func(t *testing.T) {
		avg, count := AverageAfterInsert(0, 0, 5)
		assert.Equal(t, 5.0, avg)
		assert.Equal(t, int64(1), count)
	})

	t.Run("low score pulls the average down", func(t *testing.T) {
		avg, count := AverageAfterInsert(5, 2, 1)
		assert.InDelta(t, 11.0/3.0, avg, 1e-9)
		assert.Equal(t, int64(3), count)
	})

	t.Run("same score keeps the average", func(t *testing.T) {
		avg, count := AverageAfterInsert(4, 3, 4)
		assert.InDelta(t, 4.0, avg, 1e-9)
		assert.Equal(t, int64(4), count)
	})
}

func TestAverageAfterUpdate(t *testing.T) {
	t.Run("rewriting a score keeps the count", func(t *testing.T) {
		// Two ratings averaging 4; the 3 becomes a 5.
		avg := AverageAfterUpdate(4, 2, 3, 5)
		assert.InDelta(t, 5.0, avg, 1e-9)
	})

	t.Run("unchanged score is a no-op", func(t *testing.T) {
		avg := AverageAfterUpdate(3.5, 4, 2, 2)
		assert.InDelta(t, 3.5, avg, 1e-9)
	})

	t.Run("zero count takes the new score directly", func(t *testing.T) {
		avg := AverageAfterUpdate(0, 0, 0, 4)
		assert.Equal(t, 4.0, avg)
	})
}

// A create followed by an update must land on the same aggregate as
// recomputing from scratch over the final rating set.
func TestAggregateMatchesRecompute(t *testing.T) {
	avg, count := AverageAfterInsert(0, 0, 2)      // user A rates 2
	avg, count = AverageAfterInsert(avg, count, 4) // user B rates 4
	avg = AverageAfterUpdate(avg, count, 2, 5)     // user A revises to 5

	assert.Equal(t, int64(2), count)
	assert.InDelta(t, (5.0+4.0)/2.0, avg, 1e-9)
}
