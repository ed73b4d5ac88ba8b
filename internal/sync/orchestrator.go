// Package sync composes ingestion, validation and publishing into one run
// against the storefront. Per-product failures are isolated: they are counted
// and recorded, never aborting the batch.
package sync

import (
	"context"
	"fmt"
	"sync"

	"feedsync/internal/fetch"
	"feedsync/internal/logger"
	"feedsync/internal/metafields"
	"feedsync/internal/models"
	"feedsync/internal/parser"
	"feedsync/internal/pricing"
	"feedsync/internal/repository"
	"feedsync/internal/shopify"
	"feedsync/internal/validation"
)

// Storefront is the surface the publish phase needs. Implemented by
// *shopify.Client.
type Storefront interface {
	FindBySku(ctx context.Context, sku string) (*shopify.ProductRefs, error)
	CreateProduct(ctx context.Context, input shopify.CreateProductInput) (*shopify.ProductRefs, error)
	UpdateVariantPrice(ctx context.Context, variantID string, priceMinor int64) error
	SetInventory(ctx context.Context, inventoryItemID, locationID string, quantity int) error
	SetMetafields(ctx context.Context, ownerID string, entries []shopify.MetafieldInput) error
}

// Notifier receives the session once a run finishes. Optional.
type Notifier interface {
	NotifySyncCompleted(ctx context.Context, session *models.SyncSession)
}

// Config selects what one run does. Mode full ingests before validating and
// publishing; incremental works from already-stored rows; validation-only
// stops after the validation phase.
type Config struct {
	Mode          models.SyncMode
	Categories    []models.Category
	DryRun        bool
	ValidateFirst bool
	TriggeredBy   string
}

// Result reports per-phase counts and a bounded list of error strings. RunSync
// returns it even when individual products failed.
type Result struct {
	SessionID   string             `json:"session_id"`
	Created     int                `json:"created"`
	Updated     int                `json:"updated"`
	Deactivated int                `json:"deactivated"`
	Skipped     int                `json:"skipped"`
	Failed      int                `json:"failed"`
	Validation  validation.Summary `json:"validation"`
	Errors      []string           `json:"errors,omitempty"`
}

const maxReportedErrors = 10

type Orchestrator struct {
	controller  *fetch.Controller
	validator   *validation.Engine
	store       Storefront
	pricer      *pricing.Engine
	products    *repository.ProductRepository
	sessions    *repository.SyncRepository
	notifier    Notifier
	locationID  string
	concurrency int
	logger      *logger.Logger
}

func NewOrchestrator(
	controller *fetch.Controller,
	validator *validation.Engine,
	store Storefront,
	pricer *pricing.Engine,
	products *repository.ProductRepository,
	sessions *repository.SyncRepository,
	notifier Notifier,
	locationID string,
	concurrency int,
	logger *logger.Logger,
) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Orchestrator{
		controller:  controller,
		validator:   validator,
		store:       store,
		pricer:      pricer,
		products:    products,
		sessions:    sessions,
		notifier:    notifier,
		locationID:  locationID,
		concurrency: concurrency,
		logger:      logger,
	}
}

// RunSync executes one full pipeline run. It only returns an error for
// configuration or concurrency conflicts raised before any work starts;
// partial failures are reported in the Result.
func (o *Orchestrator) RunSync(ctx context.Context, cfg Config) (*Result, error) {
	if len(cfg.Categories) == 0 {
		cfg.Categories = models.AllCategories()
	}
	if cfg.Mode == "" {
		cfg.Mode = models.SyncModeFull
	}

	session := &models.SyncSession{
		Mode:       cfg.Mode,
		Categories: cfg.Categories,
		DryRun:     cfg.DryRun,
	}
	if err := o.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	result := &Result{SessionID: session.ID}

	// Phase 1: ingest.
	if cfg.Mode == models.SyncModeFull {
		if err := o.ingest(ctx, cfg); err != nil {
			return nil, err
		}
	}

	// Phase 2: validate.
	if cfg.ValidateFirst || cfg.Mode == models.SyncModeValidationOnly {
		for _, category := range cfg.Categories {
			cat := category
			summary, err := o.validator.ValidateAll(ctx, &cat)
			if err != nil {
				return nil, err
			}
			result.Validation.Total += summary.Total
			result.Validation.Valid += summary.Valid
			result.Validation.NeedsUpdate += summary.NeedsUpdate
			result.Validation.Published += summary.Published
			result.Validation.Invalid += summary.Invalid
			result.Validation.Inactive += summary.Inactive
		}
	}
	if cfg.Mode == models.SyncModeValidationOnly {
		o.finish(ctx, session, result)
		return result, nil
	}

	// Phase 3: publish.
	for _, category := range cfg.Categories {
		cat := category
		o.publishCategory(ctx, session, cat, cfg.DryRun, result)
	}

	o.finish(ctx, session, result)
	return result, nil
}

func (o *Orchestrator) ingest(ctx context.Context, cfg Config) error {
	triggeredBy := cfg.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "sync"
	}
	job, err := o.controller.CreateJob(ctx, cfg.Categories, triggeredBy, 0)
	if err != nil {
		return err
	}
	return o.controller.ProcessJob(ctx, job.ID)
}

// publishCategory pushes every publishable product of one category through the
// storefront, with bounded concurrency. Different SKUs are independent and
// order-insensitive.
func (o *Orchestrator) publishCategory(ctx context.Context, session *models.SyncSession, category models.Category, dryRun bool, result *Result) {
	type task struct {
		product models.SupplierProduct
		action  models.SyncAction
	}
	var tasks []task

	for _, status := range []models.ValidationStatus{models.ValidationValid, models.ValidationNeedsUpdate, models.ValidationInactive} {
		products, err := o.products.ByStatus(ctx, status, &category)
		if err != nil {
			o.recordError(result, fmt.Sprintf("failed to load %s products for %s: %v", status, category, err))
			continue
		}
		for _, p := range products {
			switch status {
			case models.ValidationValid:
				tasks = append(tasks, task{product: p, action: models.SyncActionCreate})
			case models.ValidationNeedsUpdate:
				tasks = append(tasks, task{product: p, action: models.SyncActionUpdate})
			case models.ValidationInactive:
				// Only pull listings that are still live.
				if p.Published() && (p.LastSyncedStock == nil || *p.LastSyncedStock != 0) {
					tasks = append(tasks, task{product: p, action: models.SyncActionDeactivate})
				}
			}
		}
	}

	if dryRun {
		for _, t := range tasks {
			result.Skipped++
			o.addItem(ctx, session, t.product.SupplierSKU, t.action, true, "skipped (dry run)", nil)
		}
		return
	}

	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range tasks {
		t := tasks[i]
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			err := o.applyAction(ctx, session, &t.product, t.action)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				o.recordError(result, fmt.Sprintf("%s %s: %v", t.action, t.product.SupplierSKU, err))
				o.addItem(ctx, session, t.product.SupplierSKU, t.action, false, err.Error(), nil)
				return
			}
			switch t.action {
			case models.SyncActionCreate:
				result.Created++
			case models.SyncActionUpdate:
				result.Updated++
			case models.SyncActionDeactivate:
				result.Deactivated++
			}
		}()
	}
	wg.Wait()
}

func (o *Orchestrator) applyAction(ctx context.Context, session *models.SyncSession, p *models.SupplierProduct, action models.SyncAction) error {
	switch action {
	case models.SyncActionCreate:
		return o.publishProduct(ctx, session, p)
	case models.SyncActionUpdate:
		return o.updateProduct(ctx, session, p)
	case models.SyncActionDeactivate:
		return o.deactivateProduct(ctx, session, p)
	}
	return fmt.Errorf("unknown sync action %q", action)
}

// publishProduct creates (or adopts) the storefront listing for a valid,
// never-published product.
func (o *Orchestrator) publishProduct(ctx context.Context, session *models.SyncSession, p *models.SupplierProduct) error {
	sku := p.SupplierSKU
	if p.GeneratedSKU != nil && *p.GeneratedSKU != "" {
		sku = *p.GeneratedSKU
	}

	quote, err := o.pricer.Apply(ctx, p.CurrentPrice, p.Category, p.Brand, p.Segment)
	if err != nil {
		return fmt.Errorf("pricing failed: %w", err)
	}

	refs, err := o.store.FindBySku(ctx, sku)
	if err != nil {
		return err
	}
	if refs == nil {
		vendor := ""
		if p.Brand != nil {
			vendor = *p.Brand
		}
		refs, err = o.store.CreateProduct(ctx, shopify.CreateProductInput{
			Title:       p.Title,
			Vendor:      vendor,
			ProductType: string(p.Category),
			SKU:         sku,
			PriceMinor:  quote.FinalPrice,
			Images:      p.Images,
			Tags:        []string{string(p.Category)},
		})
		if err != nil {
			return err
		}
	}

	parsed := parser.Parse(p.Category, p.Title)
	entries := metafields.ForProduct(p.Category, parsed)
	if len(entries) > 0 {
		inputs := make([]shopify.MetafieldInput, 0, len(entries))
		for _, e := range entries {
			inputs = append(inputs, shopify.MetafieldInput{
				Namespace: e.Namespace, Key: e.Key, Type: e.Type, Value: e.Value,
			})
		}
		if err := o.store.SetMetafields(ctx, refs.ProductID, inputs); err != nil {
			return err
		}
	}

	if err := o.store.SetInventory(ctx, refs.InventoryItemID, o.locationID, p.CurrentStock); err != nil {
		return err
	}

	err = o.products.MarkPublished(ctx, p.SupplierSKU,
		&refs.ProductID, &refs.VariantID, &refs.InventoryItemID,
		p.CurrentPrice, p.CurrentStock)
	if err != nil {
		return err
	}

	o.addItem(ctx, session, p.SupplierSKU, models.SyncActionCreate, true, "published", map[string]interface{}{
		"shopify_product_id": refs.ProductID,
		"final_price":        quote.FinalPrice,
	})
	return nil
}

// updateProduct pushes only the fields that actually drifted since the last
// sync.
func (o *Orchestrator) updateProduct(ctx context.Context, session *models.SyncSession, p *models.SupplierProduct) error {
	if p.ShopifyVariantID == nil || p.InventoryItemID == nil {
		return fmt.Errorf("product %s is needs_update but has no storefront ids", p.SupplierSKU)
	}

	priceDrifted := p.LastSyncedPrice == nil || *p.LastSyncedPrice != p.CurrentPrice
	stockDrifted := p.LastSyncedStock == nil || *p.LastSyncedStock != p.CurrentStock

	var details = map[string]interface{}{}
	if priceDrifted {
		quote, err := o.pricer.Apply(ctx, p.CurrentPrice, p.Category, p.Brand, p.Segment)
		if err != nil {
			return fmt.Errorf("pricing failed: %w", err)
		}
		if err := o.store.UpdateVariantPrice(ctx, *p.ShopifyVariantID, quote.FinalPrice); err != nil {
			return err
		}
		details["final_price"] = quote.FinalPrice
	}
	if stockDrifted {
		if err := o.store.SetInventory(ctx, *p.InventoryItemID, o.locationID, p.CurrentStock); err != nil {
			return err
		}
		details["stock"] = p.CurrentStock
	}

	err := o.products.MarkPublished(ctx, p.SupplierSKU, nil, nil, nil, p.CurrentPrice, p.CurrentStock)
	if err != nil {
		return err
	}

	o.addItem(ctx, session, p.SupplierSKU, models.SyncActionUpdate, true, "updated", details)
	return nil
}

// deactivateProduct zeroes the storefront inventory. The remote listing is
// never deleted.
func (o *Orchestrator) deactivateProduct(ctx context.Context, session *models.SyncSession, p *models.SupplierProduct) error {
	if p.InventoryItemID == nil {
		return fmt.Errorf("product %s is inactive but has no inventory item id", p.SupplierSKU)
	}
	if err := o.store.SetInventory(ctx, *p.InventoryItemID, o.locationID, 0); err != nil {
		return err
	}
	if err := o.products.MarkDeactivated(ctx, p.SupplierSKU); err != nil {
		return err
	}
	o.addItem(ctx, session, p.SupplierSKU, models.SyncActionDeactivate, true, "inventory zeroed", nil)
	return nil
}

func (o *Orchestrator) addItem(ctx context.Context, session *models.SyncSession, sku string, action models.SyncAction, success bool, message string, details map[string]interface{}) {
	item := &models.SyncItem{
		SessionID:   session.ID,
		SupplierSKU: sku,
		Action:      action,
		Success:     success,
		Message:     message,
		Details:     details,
	}
	if err := o.sessions.AddItem(ctx, item); err != nil && o.logger != nil {
		o.logger.Error("Failed to record sync item for %s: %v", sku, err)
	}
}

func (o *Orchestrator) recordError(result *Result, msg string) {
	if len(result.Errors) < maxReportedErrors {
		result.Errors = append(result.Errors, msg)
	}
	if o.logger != nil {
		o.logger.Error("%s", msg)
	}
}

func (o *Orchestrator) finish(ctx context.Context, session *models.SyncSession, result *Result) {
	session.Created = result.Created
	session.Updated = result.Updated
	session.Deactivated = result.Deactivated
	session.Skipped = result.Skipped
	session.Failed = result.Failed
	if err := o.sessions.FinishSession(ctx, session); err != nil && o.logger != nil {
		o.logger.Error("Failed to finish sync session %s: %v", session.ID, err)
	}
	if o.notifier != nil {
		o.notifier.NotifySyncCompleted(ctx, session)
	}
	if o.logger != nil {
		o.logger.Info("Sync session %s done: created=%d updated=%d deactivated=%d skipped=%d failed=%d",
			session.ID, result.Created, result.Updated, result.Deactivated, result.Skipped, result.Failed)
	}
}
