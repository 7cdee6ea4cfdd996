// Package redis provides a read-through cache for candidate snapshots.
// Condition evaluation reads one snapshot per dispatch; caching keeps
// hot candidates from hammering the candidate store collaborator.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/infrastructure/logging"
)

// SnapshotCacheConfig configures the snapshot cache.
type SnapshotCacheConfig struct {
	// Addr is the redis server address.
	Addr string

	// Password is the optional server password.
	Password string

	// DB selects the redis database.
	DB int

	// TTL bounds snapshot staleness. Invalidation on status change
	// keeps the common case fresh; the TTL covers external edits.
	TTL time.Duration

	// KeyPrefix namespaces cache keys.
	KeyPrefix string
}

// DefaultSnapshotCacheConfig returns sensible defaults.
func DefaultSnapshotCacheConfig() SnapshotCacheConfig {
	return SnapshotCacheConfig{
		TTL:       5 * time.Minute,
		KeyPrefix: "pipeline:snapshot:",
	}
}

// SnapshotCache is a read-through candidate.SnapshotProvider backed by
// redis. Cache failures degrade to the underlying provider.
type SnapshotCache struct {
	client *redis.Client
	source candidate.SnapshotProvider
	ttl    time.Duration
	prefix string
}

var _ candidate.SnapshotProvider = (*SnapshotCache)(nil)

// NewSnapshotCache creates a cache in front of the given provider.
func NewSnapshotCache(config SnapshotCacheConfig, source candidate.SnapshotProvider) *SnapshotCache {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "pipeline:snapshot:"
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SnapshotCache{
		client: redis.NewClient(&redis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		}),
		source: source,
		ttl:    ttl,
		prefix: prefix,
	}
}

// Snapshot returns the cached view of a candidate, falling back to the
// source provider on miss.
func (c *SnapshotCache) Snapshot(ctx context.Context, candidateID string) (candidate.Snapshot, error) {
	key := c.prefix + candidateID

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var snap candidate.Snapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			return snap, nil
		}
		// Corrupt entry; drop it and fall through to the source.
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		logging.Warn().
			Add(logging.Component("snapshot-cache")).
			Add(logging.CandidateID(candidateID)).
			Add(logging.ErrorField(err)).
			Msg("cache read failed, falling back to source")
	}

	snap, err := c.source.Snapshot(ctx, candidateID)
	if err != nil {
		return candidate.Snapshot{}, err
	}

	if data, err := json.Marshal(snap); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logging.Warn().
				Add(logging.Component("snapshot-cache")).
				Add(logging.CandidateID(candidateID)).
				Add(logging.ErrorField(err)).
				Msg("cache write failed")
		}
	}
	return snap, nil
}

// Invalidate drops the cached snapshot for a candidate. Called after
// every ledger transition so the next evaluation sees the new status.
func (c *SnapshotCache) Invalidate(ctx context.Context, candidateID string) error {
	if err := c.client.Del(ctx, c.prefix+candidateID).Err(); err != nil {
		return fmt.Errorf("snapshot cache invalidate: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
