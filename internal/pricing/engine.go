// Package pricing derives sell prices from supplier prices through an ordered
// rule set. Evaluation is first-match by ascending priority; equal priorities
// are broken by rule id ascending so the outcome never depends on storage
// order.
package pricing

import (
	"context"
	"math"
	"sort"
	"strings"

	"feedsync/internal/models"
)

// DefaultMarkupPercent is applied when no rule matches a product.
const DefaultMarkupPercent = 20.0

// RuleSource supplies the active rules for a category.
type RuleSource interface {
	ActiveRules(ctx context.Context, category models.Category) ([]models.PriceRule, error)
}

// Quote is the outcome of pricing one product. Prices are integer minor units.
// RuleID is nil when the default markup was used.
type Quote struct {
	SupplierPrice int64   `json:"supplier_price"`
	FinalPrice    int64   `json:"final_price"`
	MarginPercent float64 `json:"margin_percent"`
	FixedMarkup   int64   `json:"fixed_markup"`
	RuleID        *string `json:"rule_id,omitempty"`
}

type Engine struct {
	rules RuleSource
}

func NewEngine(rules RuleSource) *Engine {
	return &Engine{rules: rules}
}

// Apply prices one supplier product. Brand and segment are optional; a rule
// whose match field is absent on the product is skipped, not an error.
func (e *Engine) Apply(ctx context.Context, supplierPrice int64, category models.Category, brand, segment *string) (Quote, error) {
	rules, err := e.rules.ActiveRules(ctx, category)
	if err != nil {
		return Quote{}, err
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})

	for i := range rules {
		rule := &rules[i]
		if !rule.IsActive {
			continue
		}
		if ruleMatches(rule, brand, segment) {
			return quote(supplierPrice, rule.PercentageMarkup, rule.FixedMarkup, &rule.ID), nil
		}
	}

	return quote(supplierPrice, DefaultMarkupPercent, 0, nil), nil
}

func ruleMatches(rule *models.PriceRule, brand, segment *string) bool {
	switch rule.MatchField {
	case models.MatchAll:
		return true
	case models.MatchBrand:
		if rule.MatchValue == "*" {
			return true
		}
		return brand != nil && strings.EqualFold(*brand, rule.MatchValue)
	case models.MatchSegment:
		if rule.MatchValue == "*" {
			return true
		}
		return segment != nil && strings.EqualFold(*segment, rule.MatchValue)
	}
	return false
}

func quote(supplierPrice int64, percent float64, fixed int64, ruleID *string) Quote {
	final := int64(math.Round(float64(supplierPrice)*(1+percent/100) + float64(fixed)))
	return Quote{
		SupplierPrice: supplierPrice,
		FinalPrice:    final,
		MarginPercent: percent,
		FixedMarkup:   fixed,
		RuleID:        ruleID,
	}
}

// StaticRules adapts a fixed rule slice to the RuleSource interface.
type StaticRules []models.PriceRule

func (s StaticRules) ActiveRules(ctx context.Context, category models.Category) ([]models.PriceRule, error) {
	var out []models.PriceRule
	for _, r := range s {
		if r.Category == category && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}
