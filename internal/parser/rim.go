package parser

import (
	"regexp"
	"strconv"
	"strings"

	"feedsync/internal/models"
)

// RimAttributes holds the dimensions extracted from a rim title like
// "7.5x17 Jant 5x112 ET35".
type RimAttributes struct {
	WidthInches    *float64 `json:"width_inches,omitempty"`
	DiameterInches float64  `json:"diameter_inches"`
	PCD            *string  `json:"pcd,omitempty"`
	Offset         *int     `json:"offset,omitempty"`
}

const (
	rimWidthMin    = 4.0
	rimWidthMax    = 13.0
	rimDiameterMin = 10.0
	rimDiameterMax = 24.0
)

var (
	// 17 inç, 17", 17 inch
	rimInchRe = regexp.MustCompile(`\b(\d{2}(?:[.,]\d)?)\s*(?:inç|inc|inch|")`)
	// 7.5x17 width/diameter pair
	rimDimPairRe = regexp.MustCompile(`\b(\d{1,2}(?:[.,]\d)?)\s*[xX]\s*(\d{2}(?:[.,]\d)?)\b`)
	// 7.5J width code
	rimWidthJRe = regexp.MustCompile(`\b(\d{1,2}(?:[.,]\d)?)\s*J\b`)
	// bolt pattern: 5x112, 4x100
	rimPCDRe = regexp.MustCompile(`\b([3-6])\s*[xX]\s*(9[5-9](?:[.,]\d)?|1[0-3]\d(?:[.,]\d)?)\b`)
	// offset: ET35, ET-6
	rimOffsetRe = regexp.MustCompile(`\bET\s*(-?\d{1,2})\b`)
)

func parseRim(title string) Result {
	res := Result{Category: models.CategoryRim}
	attrs := RimAttributes{}

	width, diameter, confidence, found := extractRimDimensions(title)
	if found {
		attrs.DiameterInches = diameter
		res.Fields = append(res.Fields, ok("diameter_inches", diameter, confidence))
		if width > 0 {
			attrs.WidthInches = &width
			res.Fields = append(res.Fields, ok("width_inches", width, confidence))
		} else {
			res.Fields = append(res.Fields, miss("width_inches", "no rim width in title"))
		}
	} else {
		res.Fields = append(res.Fields,
			miss("diameter_inches", "no plausible rim diameter in title"),
			miss("width_inches", "no plausible rim width in title"),
		)
	}

	if pcd, pOK := extractPCD(title); pOK {
		attrs.PCD = &pcd
		res.Fields = append(res.Fields, ok("pcd", pcd, 0.9))
	} else {
		res.Fields = append(res.Fields, miss("pcd", "no bolt pattern found"))
	}

	if m := rimOffsetRe.FindStringSubmatch(title); m != nil {
		offset, _ := strconv.Atoi(m[1])
		attrs.Offset = &offset
		res.Fields = append(res.Fields, ok("offset", offset, 0.9))
	} else {
		res.Fields = append(res.Fields, miss("offset", "no ET offset found"))
	}

	// Only the diameter is required for a rim.
	res.Success = found
	if found || attrs.PCD != nil || attrs.Offset != nil {
		res.Rim = &attrs
	}
	return res
}

// extractRimDimensions tries the inch keyword first, then a WxD pair (the
// larger value is taken as the diameter), then a bare J width code combined
// with nothing, which is not enough on its own.
func extractRimDimensions(title string) (width, diameter, confidence float64, found bool) {
	if m := rimInchRe.FindStringSubmatch(title); m != nil {
		d := parseDecimal(m[1])
		if d >= rimDiameterMin && d <= rimDiameterMax {
			if w, okW := extractRimWidthJ(title); okW {
				return w, d, 0.9, true
			}
			return 0, d, 0.9, true
		}
	}

	for _, m := range rimDimPairRe.FindAllStringSubmatch(title, -1) {
		a := parseDecimal(m[1])
		b := parseDecimal(m[2])
		// A bolt pattern like 5x112 also matches the pair shape; skip values
		// that cannot be a diameter.
		if b > rimDiameterMax {
			continue
		}
		// Larger value is the diameter.
		w, d := a, b
		if a > b {
			w, d = b, a
		}
		if d >= rimDiameterMin && d <= rimDiameterMax && w >= rimWidthMin && w <= rimWidthMax {
			return w, d, 0.8, true
		}
	}

	return 0, 0, 0, false
}

func extractRimWidthJ(title string) (float64, bool) {
	if m := rimWidthJRe.FindStringSubmatch(title); m != nil {
		w := parseDecimal(m[1])
		if w >= rimWidthMin && w <= rimWidthMax {
			return w, true
		}
	}
	return 0, false
}

func extractPCD(title string) (string, bool) {
	if m := rimPCDRe.FindStringSubmatch(title); m != nil {
		holes := m[1]
		circle := strings.ReplaceAll(m[2], ",", ".")
		return holes + "x" + circle, true
	}
	return "", false
}

func parseDecimal(s string) float64 {
	v, _ := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	return v
}
