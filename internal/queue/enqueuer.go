package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Enqueuer submits extraction jobs
type Enqueuer struct {
	client    *asynq.Client
	queueName string
	maxRetry  int
}

// NewEnqueuer creates an Asynq client for queueName
func NewEnqueuer(redisURL, queueName string) (*Enqueuer, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if queueName == "" {
		queueName = DefaultQueueName
	}

	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Enqueuer{
		client:    asynq.NewClient(redisOpt),
		queueName: queueName,
		maxRetry:  3,
	}, nil
}

// NewExtractTask builds the task for one waybill
func NewExtractTask(job JobData) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job data: %w", err)
	}
	return asynq.NewTask(TaskTypeExtract, payload), nil
}

// Enqueue schedules extraction of a stored waybill and returns the job id
func (e *Enqueuer) Enqueue(ctx context.Context, waybillID int64, modelName string) (string, error) {
	job := JobData{
		JobID:     uuid.New().String(),
		WaybillID: waybillID,
		ModelName: modelName,
	}

	task, err := NewExtractTask(job)
	if err != nil {
		return "", err
	}

	info, err := e.client.EnqueueContext(ctx, task,
		asynq.TaskID(job.JobID),
		asynq.Queue(e.queueName),
		asynq.MaxRetry(e.maxRetry),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue waybill %d: %w", waybillID, err)
	}
	return info.ID, nil
}

// Close closes the Asynq client
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
