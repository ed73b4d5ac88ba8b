package models

// FeedProduct is one normalized row from the supplier feed, after field-alias
// resolution. This is the shape the product repository upserts from.
type FeedProduct struct {
	SupplierSKU string                 `json:"supplier_sku"`
	Category    Category               `json:"category"`
	Title       string                 `json:"title"`
	Brand       *string                `json:"brand"`
	Segment     *string                `json:"segment"`
	Price       int64                  `json:"price"`
	Stock       int                    `json:"stock"`
	Images      []string               `json:"images"`
	Raw         map[string]interface{} `json:"raw"`
}
