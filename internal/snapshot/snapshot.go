package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hjoelr/trading-signals/internal/predictor"
)

type Config struct {
	RedisAddr     string        `envconfig:"SIGNALS_REDIS_ADDR"`
	RedisPassword string        `envconfig:"SIGNALS_REDIS_PASSWORD"`
	TTL           time.Duration `envconfig:"SIGNALS_SNAPSHOT_TTL" default:"24h"`
}

// Enabled reports whether snapshot publishing is configured at all.
func (c Config) Enabled() bool {
	return c.RedisAddr != ""
}

const keyPrefix = "signals:latest:"

// Publisher keeps the most recent conclusion per entity in redis so
// dashboards can read the live trend without querying the service.
type Publisher struct {
	client *redis.Client
	ttl    time.Duration
}

func New(ctx context.Context, cfg *Config) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to reach redis at %s: %w", cfg.RedisAddr, err)
	}
	return &Publisher{client: client, ttl: cfg.TTL}, nil
}

func (p *Publisher) Publish(ctx context.Context, entityID string, c *predictor.Conclusion) error {
	bytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("unable to marshal conclusion: %w", err)
	}
	if err := p.client.Set(ctx, keyPrefix+entityID, bytes, p.ttl).Err(); err != nil {
		return fmt.Errorf("unable to publish snapshot for %s: %w", entityID, err)
	}
	return nil
}

// Latest returns the last published conclusion for the entity, or nil when
// none exists.
func (p *Publisher) Latest(ctx context.Context, entityID string) (*predictor.Conclusion, error) {
	bytes, err := p.client.Get(ctx, keyPrefix+entityID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read snapshot for %s: %w", entityID, err)
	}
	var c predictor.Conclusion
	if err := json.Unmarshal(bytes, &c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal snapshot for %s: %w", entityID, err)
	}
	return &c, nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
