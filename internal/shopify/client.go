// Package shopify is a thin, retried, rate-limited wrapper over the storefront
// GraphQL Admin API, exposing only the operations the sync engine needs.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"feedsync/internal/logger"
	"feedsync/internal/ratelimit"
	"feedsync/internal/retry"
)

const apiVersion = "2023-10"

// Per-call cost estimates, reconciled against the actual cost the API reports.
const (
	costQuery    = 10
	costMutation = 10
)

type Client struct {
	shopDomain  string
	accessToken string
	httpClient  *http.Client
	limiter     *ratelimit.CostLimiter
	retrier     *retry.Executor
	logger      *logger.Logger
}

// NewClient builds a storefront client. The limiter must be the process-wide
// instance shared by every client, since the remote quota is shared.
func NewClient(shopDomain, accessToken string, limiter *ratelimit.CostLimiter, retrier *retry.Executor, logger *logger.Logger) *Client {
	return &Client{
		shopDomain:  shopDomain,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
		retrier: retrier,
		logger:  logger,
	}
}

// FindBySku looks a product up by variant SKU. Returns (nil, nil) when the SKU
// is not listed.
func (c *Client) FindBySku(ctx context.Context, sku string) (*ProductRefs, error) {
	query := `query($query: String!) {
		productVariants(first: 1, query: $query) {
			edges { node { id inventoryItem { id } product { id } } }
		}
	}`
	var data productBySkuData
	err := c.execute(ctx, costQuery, query, map[string]interface{}{
		"query": fmt.Sprintf("sku:%s", sku),
	}, &data)
	if err != nil {
		return nil, err
	}
	if len(data.ProductVariants.Edges) == 0 {
		return nil, nil
	}
	node := data.ProductVariants.Edges[0].Node
	return &ProductRefs{
		ProductID:       node.Product.ID,
		VariantID:       node.ID,
		InventoryItemID: node.InventoryItem.ID,
	}, nil
}

// CreateProduct creates a product with one variant and returns the captured
// storefront ids.
func (c *Client) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductRefs, error) {
	mutation := `mutation($input: ProductInput!) {
		productCreate(input: $input) {
			product {
				id
				variants(first: 1) { edges { node { id inventoryItem { id } } } }
			}
			userErrors { field message }
		}
	}`
	variables := map[string]interface{}{
		"input": map[string]interface{}{
			"title":       input.Title,
			"vendor":      input.Vendor,
			"productType": input.ProductType,
			"tags":        input.Tags,
			"variants": []map[string]interface{}{
				{
					"sku":                 input.SKU,
					"price":               formatPrice(input.PriceMinor),
					"inventoryManagement": "SHOPIFY",
				},
			},
		},
	}

	var data productCreateData
	if err := c.execute(ctx, costMutation, mutation, variables, &data); err != nil {
		return nil, err
	}
	if err := firstUserError("productCreate", data.ProductCreate.UserErrors); err != nil {
		return nil, err
	}
	product := data.ProductCreate.Product
	if product.ID == "" || len(product.Variants.Edges) == 0 {
		return nil, fmt.Errorf("productCreate returned no product for SKU %s", input.SKU)
	}
	variant := product.Variants.Edges[0].Node
	return &ProductRefs{
		ProductID:       product.ID,
		VariantID:       variant.ID,
		InventoryItemID: variant.InventoryItem.ID,
	}, nil
}

// UpdateVariantPrice sets a variant's price.
func (c *Client) UpdateVariantPrice(ctx context.Context, variantID string, priceMinor int64) error {
	mutation := `mutation($input: ProductVariantInput!) {
		productVariantUpdate(input: $input) {
			productVariant { id }
			userErrors { field message }
		}
	}`
	var data variantUpdateData
	err := c.execute(ctx, costMutation, mutation, map[string]interface{}{
		"input": map[string]interface{}{
			"id":    variantID,
			"price": formatPrice(priceMinor),
		},
	}, &data)
	if err != nil {
		return err
	}
	return firstUserError("productVariantUpdate", data.ProductVariantUpdate.UserErrors)
}

// SetInventory sets the absolute on-hand quantity at a location. Deactivation
// is a SetInventory to zero; remote listings are never deleted.
func (c *Client) SetInventory(ctx context.Context, inventoryItemID, locationID string, quantity int) error {
	mutation := `mutation($input: InventorySetOnHandQuantitiesInput!) {
		inventorySetOnHandQuantities(input: $input) {
			userErrors { field message }
		}
	}`
	var data inventorySetData
	err := c.execute(ctx, costMutation, mutation, map[string]interface{}{
		"input": map[string]interface{}{
			"reason": "correction",
			"setQuantities": []map[string]interface{}{
				{
					"inventoryItemId": inventoryItemID,
					"locationId":      locationID,
					"quantity":        quantity,
				},
			},
		},
	}, &data)
	if err != nil {
		return err
	}
	return firstUserError("inventorySetOnHandQuantities", data.InventorySetOnHandQuantities.UserErrors)
}

// SetMetafields attaches typed attributes to a product.
func (c *Client) SetMetafields(ctx context.Context, ownerID string, entries []MetafieldInput) error {
	if len(entries) == 0 {
		return nil
	}
	mutation := `mutation($metafields: [MetafieldsSetInput!]!) {
		metafieldsSet(metafields: $metafields) {
			metafields { id }
			userErrors { field message }
		}
	}`
	fields := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		fields = append(fields, map[string]interface{}{
			"ownerId":   ownerID,
			"namespace": e.Namespace,
			"key":       e.Key,
			"type":      e.Type,
			"value":     e.Value,
		})
	}
	var data metafieldsSetData
	if err := c.execute(ctx, costMutation, mutation, map[string]interface{}{"metafields": fields}, &data); err != nil {
		return err
	}
	return firstUserError("metafieldsSet", data.MetafieldsSet.UserErrors)
}

// execute runs one GraphQL call through the rate limiter and retry executor,
// then reconciles the limiter with the actual cost the API reported.
func (c *Client) execute(ctx context.Context, estimatedCost float64, query string, variables map[string]interface{}, out interface{}) error {
	if c.shopDomain == "" || c.accessToken == "" {
		return fmt.Errorf("configuration error: shopify credentials are not set")
	}

	return c.retrier.Do(ctx, "shopify graphql", func() error {
		if err := c.limiter.Wait(ctx, estimatedCost); err != nil {
			return err
		}
		return c.doRequest(ctx, estimatedCost, query, variables, out)
	})
}

func (c *Client) doRequest(ctx context.Context, estimatedCost float64, query string, variables map[string]interface{}, out interface{}) error {
	url := fmt.Sprintf("https://%s.myshopify.com/admin/api/%s/graphql.json", c.shopDomain, apiVersion)

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &retry.RateLimitedError{RetryAfter: retryAfterHeader(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &retry.RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	gqlResp := graphQLResponse{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if cost := gqlResp.Extensions.Cost; cost != nil {
		c.limiter.Reconcile(estimatedCost, cost.ActualQueryCost)
		c.limiter.SyncAvailable(cost.ThrottleStatus.CurrentlyAvailable)
	}

	for i := range gqlResp.Errors {
		if gqlResp.Errors[i].Code() == "THROTTLED" {
			return &retry.RateLimitedError{}
		}
	}
	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}
	return nil
}

func firstUserError(op string, errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s rejected: %s", op, errs[0].Message)
}

// formatPrice renders minor units as the decimal string the API expects.
func formatPrice(minor int64) string {
	return strconv.FormatFloat(float64(minor)/100, 'f', 2, 64)
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.ParseFloat(v, 64); err == nil && seconds > 0 {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return 2 * time.Second
}
