package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/graph"
	"github.com/lawgraph/lawgraph/routing"
)

const snapshotKeyPrefix = "lawgraph:snapshot:"

// SnapshotSource serves the current domain snapshot. A process-local copy is
// revalidated against the store's partition version on every call, so a
// repartition is picked up without restarts; an optional redis layer shares
// loaded snapshots across processes.
type SnapshotSource struct {
	client *graph.Client
	redis  redis.UniversalClient // optional
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.RWMutex
	current *routing.Snapshot
}

// NewSnapshotSource creates a snapshot source. rdb may be nil to disable the
// shared cache layer.
func NewSnapshotSource(client *graph.Client, rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *SnapshotSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SnapshotSource{
		client: client,
		redis:  rdb,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "snapshot_source")),
	}
}

// Snapshot returns the domain snapshot for the store's current partition
// version. The local copy is reused while the version marker is unchanged.
func (s *SnapshotSource) Snapshot(ctx context.Context) (*routing.Snapshot, error) {
	version, err := s.client.PartitionVersion(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()
	if current != nil && current.Version == version {
		snapshotCacheTotal.WithLabelValues("local_hit").Inc()
		return current, nil
	}

	if snapshot := s.fromRedis(ctx, version); snapshot != nil {
		snapshotCacheTotal.WithLabelValues("redis_hit").Inc()
		s.store(snapshot)
		return snapshot, nil
	}

	snapshotCacheTotal.WithLabelValues("miss").Inc()
	snapshot, err := routing.LoadSnapshot(ctx, s.client)
	if err != nil {
		return nil, err
	}
	s.store(snapshot)
	s.toRedis(ctx, snapshot)
	return snapshot, nil
}

// Invalidate drops the local copy so the next call reloads. Called after
// partition and rebalance writes.
func (s *SnapshotSource) Invalidate() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

func (s *SnapshotSource) store(snapshot *routing.Snapshot) {
	s.mu.Lock()
	s.current = snapshot
	s.mu.Unlock()
}

// fromRedis loads a shared snapshot for the given version. Any redis failure
// degrades to a store load; the cache is an optimization, never a dependency.
func (s *SnapshotSource) fromRedis(ctx context.Context, version string) *routing.Snapshot {
	if s.redis == nil || version == "" {
		return nil
	}
	payload, err := s.redis.Get(ctx, snapshotKeyPrefix+version).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("snapshot cache read failed", zap.Error(err))
		}
		return nil
	}
	var snapshot routing.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		s.logger.Warn("snapshot cache entry corrupt, ignoring", zap.Error(err))
		return nil
	}
	return &snapshot
}

func (s *SnapshotSource) toRedis(ctx context.Context, snapshot *routing.Snapshot) {
	if s.redis == nil || snapshot.Version == "" {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, snapshotKeyPrefix+snapshot.Version, payload, s.ttl).Err(); err != nil {
		s.logger.Warn("snapshot cache write failed", zap.Error(err))
	}
}
