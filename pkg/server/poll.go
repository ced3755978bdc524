package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/log"
	"github.com/Gfacello/ute-energy-cost/pkg/types"
)

// pollLoop reads the meter at the configured interval until the context is
// canceled. A failed cycle is logged and retried at the next tick.
func (s *Server) pollLoop(ctx context.Context) {
	if s.pollInterval <= 0 {
		log.Ctx(ctx).InfoContext(ctx, "polling disabled")
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "starting poll loop", slog.Duration("interval", s.pollInterval))
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.runCycle(ctx); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "poll cycle failed", slog.Any("error", err))
			}
		}
	}
}

// runCycle performs one read-accumulate-persist pass and returns the
// resulting snapshot. An unavailable reading still advances the snapshot
// timestamp so staleness is observable.
func (s *Server) runCycle(ctx context.Context) (types.MeterState, error) {
	var reading *float64
	if v, ok := s.source.GetCurrentReading(ctx); ok {
		reading = &v
	}

	state := s.acc.Update(ctx, reading, time.Now(), s.opts)

	if err := s.storage.SetState(ctx, state, types.CurrentStateVersion); err != nil {
		return state, fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return state, nil
}
