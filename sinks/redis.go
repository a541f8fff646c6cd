package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hubgraph/reconcile"
	"hubgraph/types"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient is the subset of *redis.Client used by RedisSink
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisConfig configures the Redis connection and key layout
type RedisConfig struct {
	Addr      string // e.g. localhost:6379
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// Event is the message published on a job's channel
type Event struct {
	Type     string             `json:"type"` // "snapshot" or "terminated"
	JobID    string             `json:"job_id"`
	Snapshot types.PoolSnapshot `json:"snapshot"`
	Outcome  types.Outcome      `json:"outcome,omitempty"`
	Error    string             `json:"error,omitempty"`
	Ticks    int                `json:"ticks,omitempty"`
}

// RedisSink mirrors every snapshot into Redis so other dashboard replicas can follow a job:
// the latest snapshot is kept under <prefix>:job:<id>:snapshot and each update is published
// on <prefix>:job:<id>.
type RedisSink struct {
	client  RedisClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisClient creates a go-redis client and verifies connectivity
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisSink creates a sink writing through client
func NewRedisSink(client RedisClient, prefix string, ttl time.Duration, logger *zap.Logger) *RedisSink {
	if prefix == "" {
		prefix = "hubgraph"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// SnapshotKey returns the key holding a job's latest snapshot
func (s *RedisSink) SnapshotKey(jobID string) string {
	return fmt.Sprintf("%s:job:%s:snapshot", s.prefix, jobID)
}

// Channel returns the pub/sub channel of a job
func (s *RedisSink) Channel(jobID string) string {
	return fmt.Sprintf("%s:job:%s", s.prefix, jobID)
}

func (s *RedisSink) Observe(jobID string, snap types.PoolSnapshot) {
	s.write(Event{Type: "snapshot", JobID: jobID, Snapshot: snap})
}

func (s *RedisSink) Terminated(jobID string, res reconcile.Result) {
	ev := Event{
		Type:     "terminated",
		JobID:    jobID,
		Snapshot: res.Snapshot,
		Outcome:  res.Outcome,
		Ticks:    res.Ticks,
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	s.write(ev)
}

// write never fails the loop; Redis errors are logged and dropped
func (s *RedisSink) write(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to encode redis event", zap.String("job_id", ev.JobID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.SnapshotKey(ev.JobID), payload, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to store snapshot", zap.String("job_id", ev.JobID), zap.Error(err))
		return
	}
	if err := s.client.Publish(ctx, s.Channel(ev.JobID), payload).Err(); err != nil {
		s.logger.Warn("failed to publish snapshot", zap.String("job_id", ev.JobID), zap.Error(err))
	}
}
