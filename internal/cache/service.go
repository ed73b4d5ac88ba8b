// Package cache refreshes the per-category supplier snapshot used by preview
// endpoints, so browsing the catalog does not cost supplier API calls.
package cache

import (
	"context"
	"time"

	"feedsync/internal/logger"
	"feedsync/internal/models"
	"feedsync/internal/repository"
	"feedsync/internal/retry"
	"feedsync/internal/supplier"
)

// Notifier is told when a category snapshot was replaced. Optional.
type Notifier interface {
	NotifyCacheRefreshed(ctx context.Context, category models.Category, count int)
}

type Service struct {
	feed     supplier.Feed
	cache    *repository.CacheRepository
	notifier Notifier
	pageSize int
	logger   *logger.Logger
}

func NewService(feed supplier.Feed, cache *repository.CacheRepository, notifier Notifier, pageSize int, logger *logger.Logger) *Service {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Service{feed: feed, cache: cache, notifier: notifier, pageSize: pageSize, logger: logger}
}

// RefreshStale refreshes every category whose snapshot is older than its
// refresh interval. Per-category failures are logged and do not stop the
// remaining categories.
func (s *Service) RefreshStale(ctx context.Context) {
	now := time.Now()
	for _, category := range models.AllCategories() {
		meta, err := s.cache.Metadata(ctx, category)
		if err != nil {
			s.logger.Error("Failed to read cache metadata for %s: %v", category, err)
			continue
		}
		if meta.Status == models.CacheFetching || !meta.Stale(now) {
			continue
		}
		if err := s.Refresh(ctx, category); err != nil {
			s.logger.Error("Cache refresh for %s failed: %v", category, err)
		}
	}
}

// Refresh replaces the snapshot for one category. The old snapshot stays
// readable until the new one is written; a failed refresh leaves it intact
// with the metadata in error or rate_limited.
func (s *Service) Refresh(ctx context.Context, category models.Category) error {
	if err := s.cache.SetStatus(ctx, category, models.CacheFetching, nil); err != nil {
		return err
	}

	var entries []models.CacheEntry
	for page := 1; ; page++ {
		result, err := s.feed.FetchPage(ctx, category, page, s.pageSize)
		if err != nil {
			status := models.CacheError
			if _, limited := retry.IsRateLimited(err); limited {
				status = models.CacheRateLimited
			}
			msg := err.Error()
			if setErr := s.cache.SetStatus(ctx, category, status, &msg); setErr != nil {
				s.logger.Error("Failed to record cache status for %s: %v", category, setErr)
			}
			return err
		}
		for _, p := range result.Products {
			entries = append(entries, models.CacheEntry{
				SupplierSKU: p.SupplierSKU,
				Title:       p.Title,
				Brand:       p.Brand,
				Price:       p.Price,
				Stock:       p.Stock,
				Payload:     p.Raw,
			})
		}
		if !result.HasMore {
			break
		}
	}

	if err := s.cache.Replace(ctx, category, entries); err != nil {
		msg := err.Error()
		if setErr := s.cache.SetStatus(ctx, category, models.CacheError, &msg); setErr != nil {
			s.logger.Error("Failed to record cache status for %s: %v", category, setErr)
		}
		return err
	}

	s.logger.Info("Refreshed %s cache: %d entries", category, len(entries))
	if s.notifier != nil {
		s.notifier.NotifyCacheRefreshed(ctx, category, len(entries))
	}
	return nil
}
