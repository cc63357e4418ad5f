// Package cache provides Redis caching for balance state and relocation
// cooldown tracking.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/config"
	"github.com/stratovisor/stratovisor/internal/domain"
)

// ErrCacheMiss indicates the key was not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Cache wraps a Redis client for caching operations.
type Cache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCache creates a new Redis cache connection.
func NewCache(cfg config.RedisConfig, logger *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.Address()))

	return &Cache{client: client, logger: logger}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Health checks if Redis is reachable.
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// =============================================================================
// Generic Cache Operations
// =============================================================================

// Get retrieves a value from cache and unmarshals it into dest.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get error: %w", err)
	}

	return json.Unmarshal([]byte(val), dest)
}

// Set stores a value in cache with a TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes a key from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// =============================================================================
// Balance Score Cache
// =============================================================================

const scoreCacheTTL = 2 * time.Minute

// SetBalanceScore caches the most recent balance score for a cluster.
func (c *Cache) SetBalanceScore(ctx context.Context, cluster string, score domain.BalanceScore) error {
	key := fmt.Sprintf("balance:%s:score", cluster)
	return c.Set(ctx, key, score, scoreCacheTTL)
}

// GetBalanceScore retrieves the cached balance score for a cluster.
func (c *Cache) GetBalanceScore(ctx context.Context, cluster string) (*domain.BalanceScore, error) {
	key := fmt.Sprintf("balance:%s:score", cluster)
	var score domain.BalanceScore
	if err := c.Get(ctx, key, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// =============================================================================
// Relocation Cooldown
// =============================================================================

// MarkRelocated records that a workload was just moved. Until the marker
// expires the planner will not move it again, which damps oscillation.
func (c *Cache) MarkRelocated(ctx context.Context, workloadID string, cooldown time.Duration) error {
	key := fmt.Sprintf("cooldown:workload:%s", workloadID)
	return c.client.Set(ctx, key, time.Now().Format(time.RFC3339), cooldown).Err()
}

// InCooldown reports whether a workload is still inside its relocation
// cooldown window.
func (c *Cache) InCooldown(ctx context.Context, workloadID string) (bool, error) {
	key := fmt.Sprintf("cooldown:workload:%s", workloadID)
	_, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get error: %w", err)
	}
	return true, nil
}

// =============================================================================
// Pub/Sub for Recommendation Events
// =============================================================================

// Event represents a real-time balancer event.
type Event struct {
	Type       string      `json:"type"` // "recommendation.created", "recommendation.applied", "power.recommended"
	ResourceID string      `json:"resource_id"`
	Data       interface{} `json:"data,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Publish publishes an event to a channel.
func (c *Cache) Publish(ctx context.Context, channel string, event Event) error {
	event.Timestamp = time.Now()
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return c.client.Publish(ctx, channel, data).Err()
}

// Subscribe subscribes to a channel and returns a message channel.
func (c *Cache) Subscribe(ctx context.Context, channels ...string) <-chan Event {
	pubsub := c.client.Subscribe(ctx, channels...)
	events := make(chan Event, 100)

	go func() {
		defer close(events)
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-pubsub.Channel():
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					c.logger.Warn("Failed to unmarshal event", zap.Error(err))
					continue
				}
				events <- event
			}
		}
	}()

	return events
}

// PublishRecommendationEvent publishes a relocation-recommendation event.
func (c *Cache) PublishRecommendationEvent(ctx context.Context, eventType string, rec *domain.RelocationRecommendation) error {
	return c.Publish(ctx, "events:recommendation", Event{
		Type:       eventType,
		ResourceID: rec.ID,
		Data:       rec,
	})
}

// PublishPowerEvent publishes a power-recommendation event.
func (c *Cache) PublishPowerEvent(ctx context.Context, eventType string, rec *domain.PowerRecommendation) error {
	return c.Publish(ctx, "events:power", Event{
		Type:       eventType,
		ResourceID: rec.HostID,
		Data:       rec,
	})
}
