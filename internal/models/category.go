package models

// Category identifies which kind of supplier product a record holds. Parsing,
// SKU generation and metafield mapping all dispatch on it.
type Category string

const (
	CategoryTire    Category = "tire"
	CategoryRim     Category = "rim"
	CategoryBattery Category = "battery"
)

// AllCategories lists every supported category in fetch order.
func AllCategories() []Category {
	return []Category{CategoryTire, CategoryRim, CategoryBattery}
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryTire, CategoryRim, CategoryBattery:
		return true
	}
	return false
}

// Code returns the short category code used in generated SKUs.
func (c Category) Code() string {
	switch c {
	case CategoryTire:
		return "TR"
	case CategoryRim:
		return "RM"
	case CategoryBattery:
		return "BT"
	}
	return "XX"
}
