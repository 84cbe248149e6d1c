package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sync"
	"testing"
	"time"

	"musicaldb_backend/internal/adapters/storage"
	"musicaldb_backend/internal/events"
	"musicaldb_backend/internal/media/domain"
	"musicaldb_backend/internal/media/repository"
	"musicaldb_backend/platform/apperr"
	"musicaldb_backend/platform/logger"

	"github.com/google/uuid"
)

type recordingEnqueuer struct {
	mu    sync.Mutex
	ids   []uuid.UUID
	fails map[uuid.UUID]bool
}

func (e *recordingEnqueuer) EnqueuePalette(_ context.Context, id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fails[id] {
		return errors.New("redis unavailable")
	}
	e.ids = append(e.ids, id)
	return nil
}

type stubRegistry struct {
	repository.AssetRegistry
	asset   repository.Asset
	palette []string
}

func (r *stubRegistry) GetByID(_ context.Context, id uuid.UUID) (repository.Asset, error) {
	if id != r.asset.ID {
		return repository.Asset{}, apperr.NotFound("Image not found")
	}
	return r.asset, nil
}

func (r *stubRegistry) UpdatePalette(_ context.Context, _ uuid.UUID, palette []string) error {
	r.palette = palette
	r.asset.Palette = palette
	return nil
}

type stubStore struct {
	data        []byte
	downloadErr error
	downloads   int
}

func (s *stubStore) PutObject(context.Context, string, string, io.Reader, int64, string, map[string]string) (string, error) {
	return "", nil
}
func (s *stubStore) DeleteObject(context.Context, string, string) error { return nil }
func (s *stubStore) DownloadFile(context.Context, string, string) (io.ReadCloser, error) {
	s.downloads++
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	return io.NopCloser(bytes.NewReader(s.data)), nil
}
func (s *stubStore) EnsureBucketExists(context.Context, string) error { return nil }

type stubBacklog struct {
	ids    []uuid.UUID
	cutoff time.Time
}

func (b *stubBacklog) ListMissingPalette(_ context.Context, cutoff time.Time, _ int) ([]uuid.UUID, error) {
	b.cutoff = cutoff
	return b.ids, nil
}

func posterJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{R: 200, G: 30, B: 30, A: 255}
			if y > 30 {
				c = color.RGBA{R: 20, G: 20, B: 180, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestExtractPaletteTaskCarriesAssetID(t *testing.T) {
	id := uuid.New()
	task, err := NewExtractPaletteTask(ExtractPalettePayload{AssetID: id.String()})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TaskExtractPalette {
		t.Fatalf("unexpected task type %s", task.Type())
	}
	payload, err := ParseExtractPalettePayload(task)
	if err != nil || payload.AssetID != id.String() {
		t.Fatalf("unexpected payload %+v (%v)", payload, err)
	}
}

func TestSubscribePaletteOnlyEnqueuesPosters(t *testing.T) {
	bus := events.NewInMemoryBus(logger.Discard())
	enqueuer := &recordingEnqueuer{}
	SubscribePalette(bus, enqueuer, logger.Discard())

	poster := uuid.New()
	ctx := context.Background()
	if err := bus.PublishSync(ctx, events.MediaAssetUploaded{AssetID: poster, Purpose: "poster"}); err != nil {
		t.Fatalf("publish poster: %v", err)
	}
	if err := bus.PublishSync(ctx, events.MediaAssetUploaded{AssetID: uuid.New(), Purpose: "profile"}); err != nil {
		t.Fatalf("publish profile: %v", err)
	}

	if len(enqueuer.ids) != 1 || enqueuer.ids[0] != poster {
		t.Fatalf("expected only the poster to be enqueued, got %v", enqueuer.ids)
	}
}

func TestPaletteExtractorStoresColorsOnce(t *testing.T) {
	asset := repository.Asset{ID: uuid.New(), Purpose: domain.PurposePoster, StorageKey: "posters/musical/x/y.jpg"}
	registry := &stubRegistry{asset: asset}
	store := &stubStore{data: posterJPEG(t)}
	extractor := NewPaletteExtractor(registry, store, "media", logger.Discard())

	if err := extractor.Extract(context.Background(), asset.ID); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(registry.palette) == 0 {
		t.Fatalf("expected palette to be stored")
	}
	for _, hex := range registry.palette {
		if len(hex) != 7 || hex[0] != '#' {
			t.Fatalf("expected #rrggbb colors, got %q", hex)
		}
	}

	if err := extractor.Extract(context.Background(), asset.ID); err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if store.downloads != 1 {
		t.Fatalf("expected no download once a palette exists, got %d downloads", store.downloads)
	}
}

func TestPaletteExtractorIgnoresMissingAndProfiles(t *testing.T) {
	profile := repository.Asset{ID: uuid.New(), Purpose: domain.PurposeProfile}
	store := &stubStore{}
	extractor := NewPaletteExtractor(&stubRegistry{asset: profile}, store, "media", logger.Discard())

	if err := extractor.Extract(context.Background(), profile.ID); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if err := extractor.Extract(context.Background(), uuid.New()); err != nil {
		t.Fatalf("missing asset: %v", err)
	}
	if store.downloads != 0 {
		t.Fatalf("expected no downloads, got %d", store.downloads)
	}
}

func TestPaletteExtractorMarksUndecodablePosters(t *testing.T) {
	asset := repository.Asset{ID: uuid.New(), Purpose: domain.PurposePoster, StorageKey: "posters/musical/x/y.jpg"}
	registry := &stubRegistry{asset: asset}
	extractor := NewPaletteExtractor(registry, &stubStore{data: []byte("not an image")}, "media", logger.Discard())

	if err := extractor.Extract(context.Background(), asset.ID); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if registry.palette == nil || len(registry.palette) != 0 {
		t.Fatalf("expected an empty palette to be recorded, got %v", registry.palette)
	}
}

func TestPaletteExtractorMarksMissingObjects(t *testing.T) {
	asset := repository.Asset{ID: uuid.New(), Purpose: domain.PurposePoster, StorageKey: "posters/musical/x/y.jpg"}
	registry := &stubRegistry{asset: asset}
	missing := &storage.Fault{Op: "get", Key: asset.StorageKey, Err: fmt.Errorf("%w: NoSuchKey", storage.ErrObjectNotFound)}
	extractor := NewPaletteExtractor(registry, &stubStore{downloadErr: missing}, "media", logger.Discard())

	if err := extractor.Extract(context.Background(), asset.ID); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if registry.palette == nil || len(registry.palette) != 0 {
		t.Fatalf("expected an empty palette for a missing object, got %v", registry.palette)
	}
}

func TestPaletteExtractorRetriesTransientDownloadFailures(t *testing.T) {
	asset := repository.Asset{ID: uuid.New(), Purpose: domain.PurposePoster, StorageKey: "posters/musical/x/y.jpg"}
	registry := &stubRegistry{asset: asset}
	outage := &storage.Fault{Op: "get", Key: asset.StorageKey, Err: errors.New("503 slow down")}
	extractor := NewPaletteExtractor(registry, &stubStore{downloadErr: outage}, "media", logger.Discard())

	if err := extractor.Extract(context.Background(), asset.ID); err == nil {
		t.Fatalf("expected a transient failure to be returned for retry")
	}
	if registry.palette != nil {
		t.Fatalf("palette must stay unset after a transient failure, got %v", registry.palette)
	}
}

func TestPaletteBackfillSkipsFailedEnqueues(t *testing.T) {
	ok, failing := uuid.New(), uuid.New()
	backlog := &stubBacklog{ids: []uuid.UUID{ok, failing}}
	enqueuer := &recordingEnqueuer{fails: map[uuid.UUID]bool{failing: true}}
	backfill := NewPaletteBackfill(backlog, enqueuer, logger.Discard(), time.Minute, time.Hour)

	before := time.Now()
	if n := backfill.sweep(context.Background()); n != 1 {
		t.Fatalf("expected one enqueued poster, got %d", n)
	}
	if !backlog.cutoff.Before(before.Add(-59 * time.Minute)) {
		t.Fatalf("expected cutoff to honor the grace period, got %v", backlog.cutoff)
	}
}

func TestRedisClientOptHonorsTLSInsecure(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@localhost:6380/2", true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opt.Addr != "localhost:6380" || opt.Password != "secret" || opt.DB != 2 {
		t.Fatalf("unexpected opt %+v", opt)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatalf("expected insecure TLS config")
	}

	plain, err := redisClientOpt("redis://localhost:6379/0", false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if plain.TLSConfig != nil {
		t.Fatalf("expected no TLS for plain redis url")
	}
}
