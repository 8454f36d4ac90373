// Package draw implements winner selection and the sequential reveal of a
// prize draw.
package draw

import (
	"strings"

	"prizedraw/internal/models"
)

// Rand is the random source used by Select. *rand.Rand from math/rand/v2
// satisfies it; tests pass a seeded generator.
type Rand interface {
	IntN(n int) int
}

// Select draws up to count entries from pool, uniformly at random and
// without replacement by participant. Each pick is uniform over the entries
// whose participant has not been picked yet, so the result never holds two
// entries of the same participant and its length is
// min(count, distinct participants). Entries with a blank participant ID are
// ignored. A negative count is treated as zero. pool is not modified.
func Select(pool []models.Entry, count int, rng Rand) []models.Entry {
	if count <= 0 {
		return []models.Entry{}
	}

	// Work on indexes so the caller's slice stays untouched.
	eligible := make([]int, 0, len(pool))
	for i := range pool {
		if strings.TrimSpace(pool[i].ParticipantID) != "" {
			eligible = append(eligible, i)
		}
	}

	selected := make([]models.Entry, 0, count)
	for len(selected) < count && len(eligible) > 0 {
		winner := pool[eligible[rng.IntN(len(eligible))]]
		selected = append(selected, winner)

		// Drop every remaining entry of the winner in place.
		id := participantKey(winner)
		kept := eligible[:0]
		for _, idx := range eligible {
			if participantKey(pool[idx]) != id {
				kept = append(kept, idx)
			}
		}
		eligible = kept
	}

	return selected
}

// DistinctParticipants counts the eligible participants in pool.
func DistinctParticipants(pool []models.Entry) int {
	seen := make(map[string]struct{}, len(pool))
	for i := range pool {
		if key := participantKey(pool[i]); key != "" {
			seen[key] = struct{}{}
		}
	}
	return len(seen)
}

func participantKey(e models.Entry) string {
	return strings.TrimSpace(e.ParticipantID)
}
