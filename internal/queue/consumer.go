/**
 * Queue Consumer for the Waybill Worker
 *
 * Consumes waybill extraction jobs from Redis via Asynq and runs them
 * through the waybill processor. Job status is mirrored to Redis sets
 * by the status tracker.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/waybill-worker/internal/errors"
	"github.com/adverant/nexus/waybill-worker/internal/processor"
)

// TaskTypeExtract is the Asynq task type for waybill extraction
const TaskTypeExtract = "waybill:extract"

// DefaultQueueName is the Asynq queue extraction jobs are sent to
const DefaultQueueName = "waybills"

const defaultProcessingTimeout = 5 * time.Minute

// JobData is the payload of an extraction task
type JobData struct {
	JobID     string `json:"jobId"`
	WaybillID int64  `json:"waybillId"`
	ModelName string `json:"modelName,omitempty"`
}

// UnmarshalJSON accepts waybillId as a number or a numeric string, since
// producers outside Go tend to send ids as strings.
func (j *JobData) UnmarshalJSON(data []byte) error {
	type Alias JobData
	aux := &struct {
		WaybillID interface{} `json:"waybillId"`
		*Alias
	}{
		Alias: (*Alias)(j),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobData: %w", err)
	}

	switch v := aux.WaybillID.(type) {
	case float64:
		if v != float64(int64(v)) {
			return fmt.Errorf("waybillId must be an integer, got %v", v)
		}
		j.WaybillID = int64(v)
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid waybillId %q: %w", v, err)
		}
		j.WaybillID = id
	case nil:
		return fmt.Errorf("waybillId is required")
	default:
		return fmt.Errorf("waybillId must be a number or string, got %T", v)
	}

	if j.WaybillID <= 0 {
		return fmt.Errorf("waybillId must be positive, got %d", j.WaybillID)
	}
	return nil
}

// StatusRecorder receives job lifecycle updates
type StatusRecorder interface {
	MarkProcessing(ctx context.Context, jobID string, waybillID int64) error
	MarkCompleted(ctx context.Context, jobID string, result *processor.ProcessResult) error
	MarkFailed(ctx context.Context, jobID string, details map[string]interface{}) error
}

// Consumer handles job consumption from the Redis queue
type Consumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.WaybillProcessorInterface
	status    StatusRecorder
	config    *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.WaybillProcessorInterface
	Status            StatusRecorder
	ProcessingTimeout int64 // milliseconds, default 300000
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// Exponential backoff: 5s, 10s, 20s, capped at 60s
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, payload=%s, error=%v",
					task.Type(), string(task.Payload()), err)
			}),
		},
	)

	consumer := newConsumer(cfg)
	consumer.server = server
	return consumer, nil
}

func newConsumer(cfg *ConsumerConfig) *Consumer {
	c := &Consumer{
		mux:       asynq.NewServeMux(),
		processor: cfg.Processor,
		status:    cfg.Status,
		config:    cfg,
	}
	if c.status == nil {
		c.status = nopRecorder{}
	}
	c.mux.HandleFunc(TaskTypeExtract, c.handleExtract)
	return c
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	log.Printf("Stopping queue consumer...")
	c.server.Shutdown()
	log.Printf("Queue consumer stopped")
	return nil
}

func (c *Consumer) timeout() time.Duration {
	if c.config.ProcessingTimeout > 0 {
		return time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}
	return defaultProcessingTimeout
}

// handleExtract runs one extraction task. Errors that a retry cannot fix
// are wrapped with asynq.SkipRetry.
func (c *Consumer) handleExtract(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var job JobData
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}

	log.Printf("[Job %s] Extracting waybill %d (model=%q)", job.JobID, job.WaybillID, job.ModelName)

	if err := c.status.MarkProcessing(ctx, job.JobID, job.WaybillID); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to processing: %v", job.JobID, err)
	}

	timeout := c.timeout()
	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.processor.ProcessWaybill(processCtx, &processor.ProcessRequest{
		JobID:     job.JobID,
		WaybillID: job.WaybillID,
		ModelName: job.ModelName,
	})

	duration := time.Since(startTime)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			log.Printf("[Job %s] Processing timed out after %v (timeout: %v)", job.JobID, duration, timeout)
			err = errors.NewProcessingTimeoutError(job.JobID, timeout, err)
		} else {
			log.Printf("[Job %s] Processing failed after %v: %v", job.JobID, duration, err)
		}

		details := map[string]interface{}{
			"error":          err.Error(),
			"waybillId":      job.WaybillID,
			"processingTime": duration.Milliseconds(),
		}
		if pe, ok := errors.AsProcessingError(err); ok {
			details = pe.ToMap()
			details["waybillId"] = job.WaybillID
			details["processingTime"] = duration.Milliseconds()
		}
		if updateErr := c.status.MarkFailed(ctx, job.JobID, details); updateErr != nil {
			log.Printf("[Job %s] Warning: Failed to update status to failed: %v", job.JobID, updateErr)
		}

		if !retryable(err) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return fmt.Errorf("waybill extraction failed: %w", err)
	}

	log.Printf("[Job %s] Extraction completed in %v: kind=%s, tables=%d, forms=%d",
		job.JobID, duration, result.Kind, result.TablesExtracted, result.FormsExtracted)

	if err := c.status.MarkCompleted(ctx, job.JobID, result); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to completed: %v", job.JobID, err)
	}

	return nil
}

// retryable reports whether running the job again could succeed
func retryable(err error) bool {
	switch {
	case errors.HasCode(err, errors.ErrorConfigurationMissing),
		errors.HasCode(err, errors.ErrorUnsupportedModel),
		errors.HasCode(err, errors.ErrorUnsupportedFormat),
		errors.HasCode(err, errors.ErrorRecordNotFound):
		return false
	}
	return true
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"timeout":     c.timeout().String(),
	}
}

type nopRecorder struct{}

func (nopRecorder) MarkProcessing(context.Context, string, int64) error { return nil }
func (nopRecorder) MarkCompleted(context.Context, string, *processor.ProcessResult) error {
	return nil
}
func (nopRecorder) MarkFailed(context.Context, string, map[string]interface{}) error { return nil }
