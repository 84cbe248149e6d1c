package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"

	"musicaldb_backend/internal/adapters/storage"
	"musicaldb_backend/internal/media/domain"
	"musicaldb_backend/internal/media/repository"
	"musicaldb_backend/internal/media/transcode"
	"musicaldb_backend/platform/apperr"
	"musicaldb_backend/platform/config"
	"musicaldb_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	defaultPaletteColors = 4
	maxPaletteSource     = 32 << 20
)

// PaletteExtractor computes and stores the dominant colors of a poster.
type PaletteExtractor struct {
	registry repository.AssetRegistry
	store    storage.StorageService
	bucket   string
	colors   int
	log      *logger.Logger
}

func NewPaletteExtractor(registry repository.AssetRegistry, store storage.StorageService, bucket string, log *logger.Logger) *PaletteExtractor {
	return &PaletteExtractor{
		registry: registry,
		store:    store,
		bucket:   bucket,
		colors:   defaultPaletteColors,
		log:      log,
	}
}

// Extract is a no-op for assets that are gone, are not posters, or already
// carry a palette.
func (e *PaletteExtractor) Extract(ctx context.Context, assetID uuid.UUID) error {
	asset, err := e.registry.GetByID(ctx, assetID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if asset.Purpose != domain.PurposePoster || len(asset.Palette) > 0 {
		return nil
	}

	colors, err := e.palette(ctx, asset)
	if err != nil {
		return err
	}

	if err := e.registry.UpdatePalette(ctx, asset.ID, colors); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}

	e.log.Info("poster palette stored", "asset_id", asset.ID, "colors", colors)
	return nil
}

// palette returns an empty slice, not an error, for posters that can never
// yield colors. An empty palette takes the poster out of the backfill backlog.
func (e *PaletteExtractor) palette(ctx context.Context, asset repository.Asset) ([]string, error) {
	rc, err := e.store.DownloadFile(ctx, e.bucket, asset.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			e.log.Warn("poster object missing", "asset_id", asset.ID, "key", asset.StorageKey)
			return []string{}, nil
		}
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPaletteSource))
	if err != nil {
		return nil, err
	}

	colors, err := transcode.Palette(data, e.colors)
	if err != nil {
		e.log.Warn("poster palette unavailable", "asset_id", asset.ID, "error", err)
		return []string{}, nil
	}
	return colors, nil
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	extractor *PaletteExtractor
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, extractor *PaletteExtractor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		extractor: extractor,
		log:       log,
	}

	mux.HandleFunc(TaskExtractPalette, w.handleExtractPalette)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleExtractPalette(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseExtractPalettePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	assetID, err := uuid.Parse(payload.AssetID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return w.extractor.Extract(ctx, assetID)
}
