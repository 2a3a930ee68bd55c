// Package velocity tracks complaint volume per entity.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opengov-labs/kestrel/internal/domain"
)

// DefaultWindow is the sliding window for complaint velocity.
const DefaultWindow = 30 * 24 * time.Hour

// Service measures how many complaints an entity has accumulated recently.
// The cache counter gives a cheap in-window signal for the analysis pipeline;
// the repository count is the durable figure used by the overview surface.
type Service struct {
	repo   domain.Repository
	cache  domain.Cache
	window time.Duration
}

// NewService creates a velocity service with the default window.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		window: DefaultWindow,
	}
}

// Record registers one complaint against an entity and returns the running
// in-window count from the cache's atomic counter.
func (s *Service) Record(ctx context.Context, entity string) (int64, error) {
	if entity == "" {
		return 0, fmt.Errorf("entity is required")
	}
	if s.cache == nil {
		return 0, fmt.Errorf("no cache available")
	}
	return s.cache.IncrementCounter(ctx, "entity:"+entity, s.window)
}

// Count returns the number of classified complaints recorded against an
// entity within the window, from the repository.
func (s *Service) Count(ctx context.Context, entity string) (int64, error) {
	if entity == "" {
		return 0, fmt.Errorf("entity is required")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}
	since := time.Now().UTC().Add(-s.window)
	return s.repo.CountComplaintsByEntity(ctx, entity, since)
}
