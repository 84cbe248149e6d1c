package main

import (
	"context"
	"time"

	"musicaldb_backend/internal/adapters/storage"
	"musicaldb_backend/internal/media/repository"
	"musicaldb_backend/internal/scheduler"
	"musicaldb_backend/platform/config"
	"musicaldb_backend/platform/db"
	"musicaldb_backend/platform/logger"
)

// palette-backfill computes missing poster palettes inline, without Redis.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting poster palette backfill")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	storageSvc, err := storage.New(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}

	repo := repository.New(pool)
	extractor := scheduler.NewPaletteExtractor(repo, storageSvc, cfg.GetStorageBucket(), log)

	const batchSize = 25
	cutoff := time.Now()
	for {
		ids, err := repo.ListMissingPalette(ctx, cutoff, batchSize)
		if err != nil {
			log.Error("failed to list posters", "error", err)
			return
		}
		if len(ids) == 0 {
			log.Info("no posters left without a palette")
			return
		}

		progress := false
		for _, id := range ids {
			if err := extractor.Extract(ctx, id); err != nil {
				log.Error("palette extraction failed", "asset_id", id, "error", err)
				continue
			}
			progress = true
		}

		if !progress {
			log.Info("no palette progress in batch, stopping")
			return
		}
	}
}
