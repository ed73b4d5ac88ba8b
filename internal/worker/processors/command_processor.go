package processors

import (
	"context"
	"fmt"

	"feedsync/internal/fetch"
	"feedsync/internal/logger"
	"feedsync/internal/models"
	syncengine "feedsync/internal/sync"
)

// CommandProcessor maps queued command types onto the fetch controller and the
// sync orchestrator.
type CommandProcessor struct {
	controller   *fetch.Controller
	orchestrator *syncengine.Orchestrator
	logger       *logger.Logger
}

func NewCommandProcessor(controller *fetch.Controller, orchestrator *syncengine.Orchestrator, logger *logger.Logger) *CommandProcessor {
	return &CommandProcessor{
		controller:   controller,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

func (p *CommandProcessor) Process(ctx context.Context, commandType string, data map[string]interface{}) error {
	switch commandType {
	case "fetch.requested":
		return p.runFetch(ctx, data)
	case "fetch.resume":
		return p.resumeFetch(ctx, data)
	case "sync.requested":
		return p.runSync(ctx, data)
	default:
		p.logger.Warn("Ignoring unknown command type %q", commandType)
		return nil
	}
}

func (p *CommandProcessor) runFetch(ctx context.Context, data map[string]interface{}) error {
	jobID, _ := data["job_id"].(string)
	if jobID == "" {
		return fmt.Errorf("fetch.requested is missing job_id")
	}
	return p.controller.ProcessJob(ctx, jobID)
}

func (p *CommandProcessor) resumeFetch(ctx context.Context, data map[string]interface{}) error {
	jobID, _ := data["job_id"].(string)
	if jobID == "" {
		return fmt.Errorf("fetch.resume is missing job_id")
	}
	return p.controller.Resume(ctx, jobID)
}

func (p *CommandProcessor) runSync(ctx context.Context, data map[string]interface{}) error {
	cfg := syncengine.Config{
		Mode:          models.SyncModeFull,
		ValidateFirst: true,
		TriggeredBy:   "worker",
	}
	if mode, ok := data["mode"].(string); ok && mode != "" {
		cfg.Mode = models.SyncMode(mode)
	}
	if dryRun, ok := data["dry_run"].(bool); ok {
		cfg.DryRun = dryRun
	}
	if validateFirst, ok := data["validate_first"].(bool); ok {
		cfg.ValidateFirst = validateFirst
	}
	if raw, ok := data["categories"].([]interface{}); ok {
		for _, item := range raw {
			if name, ok := item.(string); ok {
				cfg.Categories = append(cfg.Categories, models.Category(name))
			}
		}
	}

	result, err := p.orchestrator.RunSync(ctx, cfg)
	if err != nil {
		return err
	}
	p.logger.Info("Queued sync finished: created=%d updated=%d deactivated=%d failed=%d",
		result.Created, result.Updated, result.Deactivated, result.Failed)
	return nil
}
