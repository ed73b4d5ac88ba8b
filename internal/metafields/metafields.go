// Package metafields turns parsed category attributes into the typed,
// namespaced key/value entries the storefront expects. Pure functions keyed by
// category.
package metafields

import (
	"fmt"
	"strconv"

	"feedsync/internal/models"
	"feedsync/internal/parser"
)

const Namespace = "specs"

// Entry is one platform-compatible serialized attribute.
type Entry struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// Coerce serializes a typed value into a storefront metafield entry.
func Coerce(key string, value interface{}) (Entry, error) {
	e := Entry{Namespace: Namespace, Key: key}
	switch v := value.(type) {
	case string:
		e.Type = "single_line_text_field"
		e.Value = v
	case int:
		e.Type = "number_integer"
		e.Value = strconv.Itoa(v)
	case int64:
		e.Type = "number_integer"
		e.Value = strconv.FormatInt(v, 10)
	case float64:
		e.Type = "number_decimal"
		e.Value = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		e.Type = "boolean"
		e.Value = strconv.FormatBool(v)
	default:
		return Entry{}, fmt.Errorf("unsupported metafield value type %T for %q", value, key)
	}
	return e, nil
}

type mapperFunc func(parsed parser.Result) []Entry

var mappers = map[models.Category]mapperFunc{
	models.CategoryTire:    tireEntries,
	models.CategoryRim:     rimEntries,
	models.CategoryBattery: batteryEntries,
}

// ForProduct builds the metafield entries for one product from its parsed
// attributes. Fields that did not parse are simply absent.
func ForProduct(category models.Category, parsed parser.Result) []Entry {
	fn, ok := mappers[category]
	if !ok {
		return nil
	}
	return fn(parsed)
}

func tireEntries(parsed parser.Result) []Entry {
	t := parsed.Tire
	if t == nil {
		return nil
	}
	var entries []Entry
	if t.Width > 0 {
		entries = appendEntry(entries, "width", t.Width)
		entries = appendEntry(entries, "aspect_ratio", t.AspectRatio)
		entries = appendEntry(entries, "rim_diameter", t.RimDiameter)
	}
	if t.LoadIndex != nil {
		entries = appendEntry(entries, "load_index", *t.LoadIndex)
	}
	if t.SpeedIndex != nil {
		entries = appendEntry(entries, "speed_index", *t.SpeedIndex)
	}
	if t.Season != nil {
		entries = appendEntry(entries, "season", *t.Season)
	}
	return entries
}

func rimEntries(parsed parser.Result) []Entry {
	r := parsed.Rim
	if r == nil {
		return nil
	}
	var entries []Entry
	if r.DiameterInches > 0 {
		entries = appendEntry(entries, "diameter_inches", r.DiameterInches)
	}
	if r.WidthInches != nil {
		entries = appendEntry(entries, "width_inches", *r.WidthInches)
	}
	if r.PCD != nil {
		entries = appendEntry(entries, "pcd", *r.PCD)
	}
	if r.Offset != nil {
		entries = appendEntry(entries, "offset", *r.Offset)
	}
	return entries
}

func batteryEntries(parsed parser.Result) []Entry {
	b := parsed.Battery
	if b == nil {
		return nil
	}
	var entries []Entry
	if b.CapacityAh > 0 {
		entries = appendEntry(entries, "capacity_ah", b.CapacityAh)
	}
	entries = appendEntry(entries, "voltage", b.Voltage)
	if b.ColdCrankingAmps != nil {
		entries = appendEntry(entries, "cold_cranking_amps", *b.ColdCrankingAmps)
	}
	return entries
}

func appendEntry(entries []Entry, key string, value interface{}) []Entry {
	e, err := Coerce(key, value)
	if err != nil {
		return entries
	}
	return append(entries, e)
}
