package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"musicaldb_backend/internal/events"
	"musicaldb_backend/internal/media/domain"
	"musicaldb_backend/platform/config"
	"musicaldb_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const paletteMaxRetry = 5

type Client struct {
	client *asynq.Client
	queue  string
}

// PaletteEnqueuer schedules palette extraction for a stored poster.
type PaletteEnqueuer interface {
	EnqueuePalette(ctx context.Context, assetID uuid.UUID) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueuePalette is idempotent per asset: a task already queued for the same
// asset is left in place.
func (c *Client) EnqueuePalette(ctx context.Context, assetID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewExtractPaletteTask(ExtractPalettePayload{AssetID: assetID.String()})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(paletteTaskID(assetID)),
		asynq.MaxRetry(paletteMaxRetry),
		asynq.Retention(24*time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// SubscribePalette enqueues palette extraction whenever a poster is uploaded.
func SubscribePalette(bus events.Bus, enqueuer PaletteEnqueuer, log *logger.Logger) {
	bus.Subscribe(events.MediaAssetUploaded{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		uploaded, ok := event.(events.MediaAssetUploaded)
		if !ok || uploaded.Purpose != string(domain.PurposePoster) {
			return nil
		}
		if err := enqueuer.EnqueuePalette(ctx, uploaded.AssetID); err != nil {
			log.Warn("palette enqueue failed", "asset_id", uploaded.AssetID, "error", err)
			return err
		}
		return nil
	}))
}

func paletteTaskID(assetID uuid.UUID) string {
	return "palette:" + assetID.String()
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
