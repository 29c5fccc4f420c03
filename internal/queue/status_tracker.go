/**
 * Redis job status tracking for the Waybill Worker
 *
 * Mirrors job state into Redis so producers can poll it:
 * - <prefix>:processing, :completed, :failed sets of job ids
 * - <prefix>:results and :errors hashes keyed by job id
 * - <prefix>:events pub/sub channel with one event per transition
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/waybill-worker/internal/processor"
)

// DefaultStatusPrefix prefixes every status key
const DefaultStatusPrefix = "waybill:jobs"

// StatusTracker records job transitions in Redis
type StatusTracker struct {
	client *redis.Client
	prefix string
}

// NewStatusTracker connects to Redis and verifies the connection
func NewStatusTracker(ctx context.Context, redisURL, prefix string) (*StatusTracker, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewStatusTrackerWithClient(client, prefix), nil
}

// NewStatusTrackerWithClient wraps an existing Redis client
func NewStatusTrackerWithClient(client *redis.Client, prefix string) *StatusTracker {
	if prefix == "" {
		prefix = DefaultStatusPrefix
	}
	return &StatusTracker{client: client, prefix: prefix}
}

func (t *StatusTracker) key(suffix string) string {
	return fmt.Sprintf("%s:%s", t.prefix, suffix)
}

// MarkProcessing records that a job started
func (t *StatusTracker) MarkProcessing(ctx context.Context, jobID string, waybillID int64) error {
	pipe := t.client.TxPipeline()
	pipe.SAdd(ctx, t.key("processing"), jobID)
	pipe.SRem(ctx, t.key("failed"), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark job %s processing: %w", jobID, err)
	}
	return t.publish(ctx, "processing", jobID, map[string]interface{}{"waybillId": waybillID})
}

// MarkCompleted records a finished job and its result summary
func (t *StatusTracker) MarkCompleted(ctx context.Context, jobID string, result *processor.ProcessResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	pipe := t.client.TxPipeline()
	pipe.SRem(ctx, t.key("processing"), jobID)
	pipe.SAdd(ctx, t.key("completed"), jobID)
	pipe.HSet(ctx, t.key("results"), jobID, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark job %s completed: %w", jobID, err)
	}
	return t.publish(ctx, "completed", jobID, map[string]interface{}{"waybillId": result.WaybillID})
}

// MarkFailed records a failed job and its error details
func (t *StatusTracker) MarkFailed(ctx context.Context, jobID string, details map[string]interface{}) error {
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal error details: %w", err)
	}

	pipe := t.client.TxPipeline()
	pipe.SRem(ctx, t.key("processing"), jobID)
	pipe.SAdd(ctx, t.key("failed"), jobID)
	pipe.HSet(ctx, t.key("errors"), jobID, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}
	return t.publish(ctx, "failed", jobID, nil)
}

// Result returns the stored result or error JSON of a job, and its status
func (t *StatusTracker) Result(ctx context.Context, jobID string) (string, []byte, error) {
	for _, status := range []string{"completed", "failed", "processing"} {
		member, err := t.client.SIsMember(ctx, t.key(status), jobID).Result()
		if err != nil {
			return "", nil, fmt.Errorf("failed to read job status: %w", err)
		}
		if !member {
			continue
		}

		hash := map[string]string{"completed": "results", "failed": "errors"}[status]
		if hash == "" {
			return status, nil, nil
		}
		data, err := t.client.HGet(ctx, t.key(hash), jobID).Bytes()
		if err != nil && err != redis.Nil {
			return "", nil, fmt.Errorf("failed to read job %s: %w", hash, err)
		}
		return status, data, nil
	}
	return "unknown", nil, nil
}

// publish emits a job event on <prefix>:events
func (t *StatusTracker) publish(ctx context.Context, status, jobID string, extra map[string]interface{}) error {
	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	for k, v := range extra {
		event[k] = v
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := t.client.Publish(ctx, t.key("events"), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// GetStats returns job counts per status
func (t *StatusTracker) GetStats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, 3)
	for _, status := range []string{"processing", "completed", "failed"} {
		n, err := t.client.SCard(ctx, t.key(status)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to count %s jobs: %w", status, err)
		}
		stats[status] = n
	}
	return stats, nil
}

// Close closes the Redis connection
func (t *StatusTracker) Close() error {
	return t.client.Close()
}
