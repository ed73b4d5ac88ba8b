package validation

import (
	"fmt"
	"strings"

	"feedsync/internal/models"
	"feedsync/internal/parser"
)

const unknownCode = "UNK"

// GenerateSKU builds {brandCode}-{categoryCode}-{sizeCode}-{last6OfSupplierSku},
// uppercased. Unextractable parts fall back to UNK.
func GenerateSKU(p *models.SupplierProduct) string {
	brand := unknownCode
	if p.Brand != nil {
		if code := brandCode(*p.Brand); code != "" {
			brand = code
		}
	}

	size := sizeCode(p.Category, p.Title)

	sku := fmt.Sprintf("%s-%s-%s-%s", brand, p.Category.Code(), size, lastN(p.SupplierSKU, 6))
	return strings.ToUpper(sku)
}

func brandCode(brand string) string {
	var b strings.Builder
	for _, r := range brand {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() >= 3 {
				break
			}
		}
	}
	return b.String()
}

// sizeCode is category-specific: tire WIDTH-RATIORDIAM, rim WIDTHxDIAM,
// battery CAPACITYAH.
func sizeCode(category models.Category, title string) string {
	parsed := parser.Parse(category, title)
	switch category {
	case models.CategoryTire:
		if parsed.Tire != nil && parsed.Tire.Width > 0 {
			return fmt.Sprintf("%d-%dR%d", parsed.Tire.Width, parsed.Tire.AspectRatio, parsed.Tire.RimDiameter)
		}
	case models.CategoryRim:
		if parsed.Rim != nil && parsed.Rim.DiameterInches > 0 {
			if parsed.Rim.WidthInches != nil {
				return fmt.Sprintf("%sx%s", trimFloat(*parsed.Rim.WidthInches), trimFloat(parsed.Rim.DiameterInches))
			}
			return trimFloat(parsed.Rim.DiameterInches)
		}
	case models.CategoryBattery:
		if parsed.Battery != nil && parsed.Battery.CapacityAh > 0 {
			return fmt.Sprintf("%dAH", parsed.Battery.CapacityAh)
		}
	}
	return unknownCode
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	return strings.TrimSuffix(s, ".0")
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
