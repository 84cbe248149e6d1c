package scheduler

import (
	"context"
	"time"

	"musicaldb_backend/internal/media/repository"
	"musicaldb_backend/platform/logger"
)

const (
	defaultPaletteBackfillInterval = 10 * time.Minute
	defaultPaletteBackfillGrace    = 5 * time.Minute
	paletteBackfillBatch           = 100
)

// PaletteBackfill periodically re-enqueues posters whose palette task was
// lost, e.g. because Redis was unreachable when the poster was uploaded.
type PaletteBackfill struct {
	repo     repository.PaletteBacklog
	enqueuer PaletteEnqueuer
	log      *logger.Logger
	interval time.Duration
	grace    time.Duration
}

func NewPaletteBackfill(repo repository.PaletteBacklog, enqueuer PaletteEnqueuer, log *logger.Logger, interval, grace time.Duration) *PaletteBackfill {
	if interval <= 0 {
		interval = defaultPaletteBackfillInterval
	}
	if grace <= 0 {
		grace = defaultPaletteBackfillGrace
	}

	return &PaletteBackfill{
		repo:     repo,
		enqueuer: enqueuer,
		log:      log,
		interval: interval,
		grace:    grace,
	}
}

func (b *PaletteBackfill) Run(ctx context.Context) {
	if b == nil || b.repo == nil || b.enqueuer == nil {
		return
	}

	b.sweep(ctx)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sweep(ctx)
		}
	}
}

// sweep returns the number of posters enqueued.
func (b *PaletteBackfill) sweep(ctx context.Context) int {
	ids, err := b.repo.ListMissingPalette(ctx, time.Now().Add(-b.grace), paletteBackfillBatch)
	if err != nil {
		b.log.Warn("palette backfill query failed", "error", err)
		return 0
	}

	enqueued := 0
	for _, id := range ids {
		if err := b.enqueuer.EnqueuePalette(ctx, id); err != nil {
			b.log.Warn("palette backfill enqueue failed", "asset_id", id, "error", err)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		b.log.Info("palette backfill enqueued posters", "count", enqueued)
	}
	return enqueued
}
