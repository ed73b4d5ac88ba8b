package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"feedsync/internal/logger"
)

const CommandTopic = "feedsync-commands"

// CommandQueue hands work to the background worker. Unlike lifecycle events,
// enqueueing is not best effort: the caller needs to know the command was
// accepted.
type CommandQueue struct {
	writer *kafka.Writer
	logger *logger.Logger
}

func NewCommandQueue(brokers string, logger *logger.Logger) *CommandQueue {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        CommandTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
	}
	return &CommandQueue{writer: writer, logger: logger}
}

func (q *CommandQueue) Close() error {
	return q.writer.Close()
}

// EnqueueFetch asks the worker to process a created fetch job.
func (q *CommandQueue) EnqueueFetch(ctx context.Context, jobID string) error {
	return q.enqueue(ctx, jobID, "fetch.requested", map[string]interface{}{"job_id": jobID})
}

// EnqueueResume asks the worker to resume a rate-limited fetch job now instead
// of waiting for the scheduler.
func (q *CommandQueue) EnqueueResume(ctx context.Context, jobID string) error {
	return q.enqueue(ctx, jobID, "fetch.resume", map[string]interface{}{"job_id": jobID})
}

// EnqueueSync asks the worker to run a sync with the given request payload.
func (q *CommandQueue) EnqueueSync(ctx context.Context, key string, data map[string]interface{}) error {
	return q.enqueue(ctx, key, "sync.requested", data)
}

func (q *CommandQueue) enqueue(ctx context.Context, key, commandType string, data map[string]interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type":      commandType,
		"data":      data,
		"timestamp": time.Now(),
	})
	if err != nil {
		return err
	}
	err = q.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload})
	if err != nil {
		return err
	}
	q.logger.Debug("Enqueued command %s (key %s)", commandType, key)
	return nil
}
