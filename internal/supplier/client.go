// Package supplier wraps the upstream product feed API: paginated catalog
// retrieval plus normalization of its loosely-typed payloads.
package supplier

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"feedsync/internal/logger"
	"feedsync/internal/models"
	"feedsync/internal/retry"
)

// Page is one page of the supplier catalog.
type Page struct {
	Products []models.FeedProduct
	HasMore  bool
}

// Feed is the surface the fetch controller consumes. A 429 from the supplier
// is surfaced as *retry.RateLimitedError; other non-2xx responses are
// *retry.RemoteError.
type Feed interface {
	FetchPage(ctx context.Context, category models.Category, page, pageSize int) (*Page, error)
}

// Client talks to the supplier feed over HTTP. Page fetches are paced so a
// full catalog crawl does not hammer the upstream.
type Client struct {
	http   *resty.Client
	pacer  *rate.Limiter
	logger *logger.Logger
}

func NewClient(baseURL, apiKey string, logger *logger.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("X-Api-Key", apiKey).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)

	return &Client{
		http:   httpClient,
		pacer:  rate.NewLimiter(rate.Limit(2), 1), // 2 pages/second
		logger: logger,
	}
}

type pageResponse struct {
	Products []map[string]interface{} `json:"products"`
	HasMore  bool                     `json:"has_more"`
}

// FetchPage retrieves one catalog page for a category and normalizes every
// row. Rows that cannot be normalized are skipped and logged, not fatal.
func (c *Client) FetchPage(ctx context.Context, category models.Category, page, pageSize int) (*Page, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	var body pageResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"category":  string(category),
			"page":      strconv.Itoa(page),
			"page_size": strconv.Itoa(pageSize),
		}).
		SetResult(&body).
		Get("/products")
	if err != nil {
		return nil, fmt.Errorf("supplier fetch failed: %w", err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		return nil, &retry.RateLimitedError{RetryAfter: retryAfterHint(resp)}
	}
	if resp.IsError() {
		return nil, &retry.RemoteError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	result := &Page{HasMore: body.HasMore}
	for _, raw := range body.Products {
		product, err := Normalize(category, raw)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("Skipping unnormalizable supplier row (category %s, page %d): %v", category, page, err)
			}
			continue
		}
		result.Products = append(result.Products, product)
	}
	return result, nil
}

// retryAfterHint reads the wait the supplier asked for, defaulting to 60s when
// the header is missing or unparsable.
func retryAfterHint(resp *resty.Response) time.Duration {
	header := resp.Header().Get("Retry-After")
	if header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 60 * time.Second
}
