package policy

import (
	"fmt"
	"sort"
	"time"
)

// Record is one active asset considered for retention.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Partition is the result of PartitionByCap. Both slices are newest first.
type Partition struct {
	Keep   []Record `json:"keep"`
	Demote []Record `json:"demote"`
}

// PartitionByCap keeps the limit most recently created records and demotes the
// rest. Records with equal CreatedAt are ordered by ID ascending, then by
// their position in the input. The input slice is not modified.
//
// The result is a snapshot: if records are added before the caller persists
// the demotion, the caller must partition again.
func PartitionByCap(records []Record, limit int) (Partition, error) {
	if limit <= 0 {
		return Partition{}, fmt.Errorf("%w: retention cap must be positive, got %d", ErrInvalidArgument, limit)
	}

	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	n := min(limit, len(sorted))
	return Partition{
		Keep:   sorted[:n:n],
		Demote: append([]Record{}, sorted[n:]...),
	}, nil
}
