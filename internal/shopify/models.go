package shopify

// GraphQL wire types for the small slice of the Admin API the sync engine
// needs.

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string                 `json:"message"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Code extracts the machine-readable error code, e.g. "THROTTLED".
func (e *graphQLError) Code() string {
	if e.Extensions == nil {
		return ""
	}
	if code, ok := e.Extensions["code"].(string); ok {
		return code
	}
	return ""
}

type throttleStatus struct {
	MaximumAvailable   float64 `json:"maximumAvailable"`
	CurrentlyAvailable float64 `json:"currentlyAvailable"`
	RestoreRate        float64 `json:"restoreRate"`
}

type costExtension struct {
	RequestedQueryCost float64        `json:"requestedQueryCost"`
	ActualQueryCost    float64        `json:"actualQueryCost"`
	ThrottleStatus     throttleStatus `json:"throttleStatus"`
}

type graphQLResponse struct {
	Data       interface{}    `json:"data"`
	Errors     []graphQLError `json:"errors,omitempty"`
	Extensions struct {
		Cost *costExtension `json:"cost,omitempty"`
	} `json:"extensions"`
}

// ProductRefs are the storefront identifiers captured after a create.
type ProductRefs struct {
	ProductID       string `json:"product_id"`
	VariantID       string `json:"variant_id"`
	InventoryItemID string `json:"inventory_item_id"`
}

// CreateProductInput is the minimal surface the sync engine publishes.
type CreateProductInput struct {
	Title       string
	Vendor      string
	ProductType string
	SKU         string
	PriceMinor  int64
	Images      []string
	Tags        []string
}

// MetafieldInput is one typed, namespaced attribute to attach to a product.
type MetafieldInput struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

type productBySkuData struct {
	ProductVariants struct {
		Edges []struct {
			Node struct {
				ID            string `json:"id"`
				InventoryItem struct {
					ID string `json:"id"`
				} `json:"inventoryItem"`
				Product struct {
					ID string `json:"id"`
				} `json:"product"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"productVariants"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type productCreateData struct {
	ProductCreate struct {
		Product struct {
			ID       string `json:"id"`
			Variants struct {
				Edges []struct {
					Node struct {
						ID            string `json:"id"`
						InventoryItem struct {
							ID string `json:"id"`
						} `json:"inventoryItem"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"variants"`
		} `json:"product"`
		UserErrors []userError `json:"userErrors"`
	} `json:"productCreate"`
}

type variantUpdateData struct {
	ProductVariantUpdate struct {
		ProductVariant struct {
			ID string `json:"id"`
		} `json:"productVariant"`
		UserErrors []userError `json:"userErrors"`
	} `json:"productVariantUpdate"`
}

type inventorySetData struct {
	InventorySetOnHandQuantities struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"inventorySetOnHandQuantities"`
}

type metafieldsSetData struct {
	MetafieldsSet struct {
		Metafields []struct {
			ID string `json:"id"`
		} `json:"metafields"`
		UserErrors []userError `json:"userErrors"`
	} `json:"metafieldsSet"`
}
