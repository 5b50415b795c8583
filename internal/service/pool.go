package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripplanner/internal/metrics"
	"github.com/pkordes/tripplanner/internal/pool"
	"github.com/pkordes/tripplanner/internal/repo"
)

// PoolService serves the available and placed candidates of a group.
// The pool is recomputed on every call; nothing is cached.
type PoolService struct {
	set     repo.Set
	metrics *metrics.Recorder
	log     *slog.Logger
}

// NewPoolService constructs a PoolService reading through set.
func NewPoolService(set repo.Set, m *metrics.Recorder, log *slog.Logger) *PoolService {
	return &PoolService{set: set, metrics: m, log: log}
}

// Get derives the current pool of a group.
func (s *PoolService) Get(ctx context.Context, groupID uuid.UUID) (pool.Pool, error) {
	start := time.Now()
	defer func() { s.metrics.ObservePool(time.Since(start)) }()

	g, err := s.set.Groups.GetByID(ctx, groupID)
	if err != nil {
		return pool.Pool{}, fmt.Errorf("service.PoolService.Get: %w", err)
	}
	acts, err := s.set.Activities.ListByGroup(ctx, groupID)
	if err != nil {
		return pool.Pool{}, fmt.Errorf("service.PoolService.Get: %w", err)
	}
	p, err := derivePool(ctx, s.set, s.log, g, acts)
	if err != nil {
		return pool.Pool{}, fmt.Errorf("service.PoolService.Get: %w", err)
	}
	return p, nil
}
