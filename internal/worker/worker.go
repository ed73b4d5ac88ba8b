// Package worker consumes command events from Kafka and drives ingestion and
// sync runs asynchronously, so API callers are never blocked on a full
// catalog crawl.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"feedsync/internal/config"
	"feedsync/internal/logger"
	"feedsync/internal/worker/processors"
)

type Worker struct {
	config    *config.Config
	logger    *logger.Logger
	reader    *kafka.Reader
	processor *processors.CommandProcessor
}

func New(cfg *config.Config, processor *processors.CommandProcessor, logger *logger.Logger) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{cfg.KafkaBrokers},
		GroupID:        "feedsync-worker",
		Topic:          "feedsync-commands",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})

	return &Worker{
		config:    cfg,
		logger:    logger,
		reader:    reader,
		processor: processor,
	}
}

func (w *Worker) Start() {
	w.logger.Info("Worker started, listening for commands...")

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		message, err := w.reader.ReadMessage(ctx)
		cancel()

		if err != nil {
			w.logger.Error("Failed to read message: %v", err)
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))

		var command Command
		if err := json.Unmarshal(message.Value, &command); err != nil {
			w.logger.Error("Failed to parse command: %v", err)
			continue
		}

		if err := w.processor.Process(context.Background(), command.Type, command.Data); err != nil {
			w.logger.Error("Failed to process %s: %v", command.Type, err)
			continue
		}

		w.logger.Debug("Command %s processed successfully", command.Type)
	}
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.reader.Close()
}

// Command is the wire shape of one queued request.
type Command struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}
