package parser

import (
	"regexp"
	"strconv"
	"strings"

	"feedsync/internal/models"
)

// TireAttributes holds the dimensions and ancillary codes extracted from a
// tire title like "205/55 R16 91V Yaz Lastiği".
type TireAttributes struct {
	Width       int     `json:"width"`
	AspectRatio int     `json:"aspect_ratio"`
	RimDiameter int     `json:"rim_diameter"`
	LoadIndex   *int    `json:"load_index,omitempty"`
	SpeedIndex  *string `json:"speed_index,omitempty"`
	Season      *string `json:"season,omitempty"`
}

// Plausible ranges for passenger/light-truck tires. Matches outside these are
// rejected as false positives from unrelated digit runs (years, warranty
// months, EAN fragments).
const (
	tireWidthMin    = 125
	tireWidthMax    = 355
	tireRatioMin    = 25
	tireRatioMax    = 85
	tireDiameterMin = 10
	tireDiameterMax = 24
)

var (
	// 205/55R16, 205/55 R 16, 255/35ZR19
	tireSlashRe = regexp.MustCompile(`\b(\d{3})\s*/\s*(\d{2})\s*Z?R?\s*(\d{2})\b`)
	// 205 55 16, 205 55 R16
	tireSpacedRe = regexp.MustCompile(`\b(\d{3})\s+(\d{2})\s+Z?R?\s*(\d{2})\b`)
	// 2055516 as one digit run
	tireCompactRe = regexp.MustCompile(`\b(\d{3})(\d{2})(\d{2})\b`)
	// 91V, 104 XL-style load/speed pair
	tireLoadSpeedRe = regexp.MustCompile(`\b(\d{2,3})\s?([HJKLMNPQRSTUVWYZ])\b`)
)

var seasonKeywords = map[string][]string{
	"summer":     {"yaz", "summer"},
	"winter":     {"kış", "kis", "winter", "snow"},
	"all-season": {"4 mevsim", "dört mevsim", "dort mevsim", "all season", "all-season", "allseason", "4season"},
}

func parseTire(title string) Result {
	res := Result{Category: models.CategoryTire}
	attrs := TireAttributes{}

	width, ratio, diameter, confidence, found := extractTireDimensions(title)
	if found {
		attrs.Width = width
		attrs.AspectRatio = ratio
		attrs.RimDiameter = diameter
		res.Fields = append(res.Fields,
			ok("width", width, confidence),
			ok("aspect_ratio", ratio, confidence),
			ok("rim_diameter", diameter, confidence),
		)
	} else {
		res.Fields = append(res.Fields,
			miss("width", "no plausible tire dimensions in title"),
			miss("aspect_ratio", "no plausible tire dimensions in title"),
			miss("rim_diameter", "no plausible tire dimensions in title"),
		)
	}

	if load, speed, lsOK := extractLoadSpeed(title, diameter); lsOK {
		attrs.LoadIndex = &load
		attrs.SpeedIndex = &speed
		res.Fields = append(res.Fields,
			ok("load_index", load, 0.9),
			ok("speed_index", speed, 0.9),
		)
	} else {
		res.Fields = append(res.Fields,
			miss("load_index", "no load/speed pair found"),
			miss("speed_index", "no load/speed pair found"),
		)
	}

	if season, sOK := extractSeason(title); sOK {
		attrs.Season = &season
		res.Fields = append(res.Fields, ok("season", season, 0.7))
	} else {
		res.Fields = append(res.Fields, miss("season", "no season keyword found"))
	}

	// All three dimensions are required for a tire.
	res.Success = found
	if found || attrs.LoadIndex != nil || attrs.Season != nil {
		res.Tire = &attrs
	}
	return res
}

// extractTireDimensions tries slash notation first, then space-separated, then
// a compact digit run, each gated by range sanity checks.
func extractTireDimensions(title string) (width, ratio, diameter int, confidence float64, found bool) {
	cascades := []struct {
		re         *regexp.Regexp
		confidence float64
	}{
		{tireSlashRe, 0.95},
		{tireSpacedRe, 0.8},
		{tireCompactRe, 0.6},
	}
	for _, c := range cascades {
		for _, m := range c.re.FindAllStringSubmatch(title, -1) {
			w, _ := strconv.Atoi(m[1])
			r, _ := strconv.Atoi(m[2])
			d, _ := strconv.Atoi(m[3])
			if tireDimensionsPlausible(w, r, d) {
				return w, r, d, c.confidence, true
			}
		}
	}
	return 0, 0, 0, 0, false
}

func tireDimensionsPlausible(width, ratio, diameter int) bool {
	return width >= tireWidthMin && width <= tireWidthMax &&
		ratio >= tireRatioMin && ratio <= tireRatioMax &&
		diameter >= tireDiameterMin && diameter <= tireDiameterMax
}

// extractLoadSpeed finds a load/speed index pair such as "91V". The rim
// diameter is excluded so "R16 91V" cannot resolve to "16 9".
func extractLoadSpeed(title string, diameter int) (load int, speed string, found bool) {
	for _, m := range tireLoadSpeedRe.FindAllStringSubmatch(title, -1) {
		l, _ := strconv.Atoi(m[1])
		if l < 50 || l > 130 || l == diameter {
			continue
		}
		return l, m[2], true
	}
	return 0, "", false
}

func extractSeason(title string) (string, bool) {
	lower := strings.ToLower(title)
	// all-season first so "4 mevsim" is not claimed by a bare keyword
	for _, kw := range seasonKeywords["all-season"] {
		if strings.Contains(lower, kw) {
			return "all-season", true
		}
	}
	for _, season := range []string{"winter", "summer"} {
		for _, kw := range seasonKeywords[season] {
			if strings.Contains(lower, kw) {
				return season, true
			}
		}
	}
	return "", false
}
