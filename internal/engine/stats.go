package engine

import (
	"context"
	"fmt"

	"github.com/fieldsync/fieldsync/internal/store"
)

// Stats exposes the engine's observable counts.
type Stats struct {
	PendingCount    int `json:"pending_count"`
	CacheCount      int `json:"cache_count"`
	DeadLetterCount int `json:"dead_letter_count"`
}

// CollectStats gathers counts from the store. The cache count is
// approximate (it includes unswept expired entries).
func CollectStats(ctx context.Context, s *store.Store) (Stats, error) {
	pending, err := s.PendingCount(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("collect stats: %w", err)
	}
	cached, err := s.CacheCount(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("collect stats: %w", err)
	}
	dead, err := s.DeadLetterCount(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("collect stats: %w", err)
	}
	return Stats{
		PendingCount:    pending,
		CacheCount:      cached,
		DeadLetterCount: dead,
	}, nil
}
