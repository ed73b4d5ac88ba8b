// Package events publishes job and sync lifecycle events to Kafka so other
// services (and the worker) can react without polling the database.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"feedsync/internal/logger"
	"feedsync/internal/models"
)

const Topic = "feedsync-events"

// Event is the wire envelope for everything published on the topic.
type Event struct {
	Type      string                 `json:"type"`
	Key       string                 `json:"key"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Publisher writes events to Kafka. Publishing is best effort: a broker
// failure is logged, never propagated, so event delivery can not fail a job
// or a sync run.
type Publisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

func NewPublisher(brokers string, logger *logger.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
	}
	return &Publisher{writer: writer, logger: logger}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// NotifyJobEvent implements fetch.Notifier.
func (p *Publisher) NotifyJobEvent(ctx context.Context, event string, job *models.FetchJob) {
	p.publish(ctx, Event{
		Type: event,
		Key:  job.ID,
		Data: map[string]interface{}{
			"job_id":               job.ID,
			"status":               job.Status,
			"categories":           job.Categories,
			"completed_categories": job.CompletedCategories,
			"products_fetched":     job.ProductsFetched,
			"retry_count":          job.RetryCount,
		},
	})
}

// NotifySyncCompleted implements sync.Notifier.
func (p *Publisher) NotifySyncCompleted(ctx context.Context, session *models.SyncSession) {
	p.publish(ctx, Event{
		Type: "sync.completed",
		Key:  session.ID,
		Data: map[string]interface{}{
			"session_id":  session.ID,
			"mode":        session.Mode,
			"dry_run":     session.DryRun,
			"created":     session.Created,
			"updated":     session.Updated,
			"deactivated": session.Deactivated,
			"skipped":     session.Skipped,
			"failed":      session.Failed,
		},
	})
}

// NotifyCacheRefreshed reports a completed category cache refresh.
func (p *Publisher) NotifyCacheRefreshed(ctx context.Context, category models.Category, count int) {
	p.publish(ctx, Event{
		Type: "cache.refreshed",
		Key:  string(category),
		Data: map[string]interface{}{
			"category": category,
			"products": count,
		},
	})
}

func (p *Publisher) publish(ctx context.Context, event Event) {
	event.Timestamp = time.Now()
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event %s: %v", event.Type, err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key),
		Value: payload,
	})
	if err != nil {
		p.logger.Error("Failed to publish event %s: %v", event.Type, err)
		return
	}
	p.logger.Debug("Published event %s (key %s)", event.Type, event.Key)
}
