// Package parser extracts structured category attributes from free-text
// supplier titles. It is pure and deterministic: the same title always yields
// the same result, and failing to extract a field is a normal, reportable
// outcome rather than an error.
package parser

import (
	"feedsync/internal/models"
)

// FieldResult records one extraction attempt, successful or not.
type FieldResult struct {
	Field      string      `json:"field"`
	Value      interface{} `json:"value,omitempty"`
	Success    bool        `json:"success"`
	Reason     string      `json:"reason,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
}

// Result is the detailed outcome of parsing one title. Success is true only if
// every required field for the category parsed (tire: width+ratio+diameter;
// rim: diameter; battery: capacity).
type Result struct {
	Category models.Category    `json:"category"`
	Success  bool               `json:"success"`
	Fields   []FieldResult      `json:"fields"`
	Tire     *TireAttributes    `json:"tire,omitempty"`
	Rim      *RimAttributes     `json:"rim,omitempty"`
	Battery  *BatteryAttributes `json:"battery,omitempty"`
}

// Field returns the result for a named field, if an attempt was recorded.
func (r *Result) Field(name string) (FieldResult, bool) {
	for _, f := range r.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldResult{}, false
}

type parseFunc func(title string) Result

// strategies dispatches per category; each strategy is a pure function.
var strategies = map[models.Category]parseFunc{
	models.CategoryTire:    parseTire,
	models.CategoryRim:     parseRim,
	models.CategoryBattery: parseBattery,
}

// Parse runs the category's regex cascade over the title.
func Parse(category models.Category, title string) Result {
	fn, ok := strategies[category]
	if !ok {
		return Result{Category: category, Success: false, Fields: []FieldResult{{
			Field:   "category",
			Success: false,
			Reason:  "unsupported category",
		}}}
	}
	return fn(title)
}

func ok(field string, value interface{}, confidence float64) FieldResult {
	return FieldResult{Field: field, Value: value, Success: true, Confidence: confidence}
}

func miss(field, reason string) FieldResult {
	return FieldResult{Field: field, Success: false, Reason: reason}
}
