package parser

import (
	"regexp"
	"strconv"

	"feedsync/internal/models"
)

// BatteryAttributes holds the ratings extracted from a battery title like
// "12V 60Ah 540A Akü".
type BatteryAttributes struct {
	CapacityAh       int  `json:"capacity_ah"`
	ColdCrankingAmps *int `json:"cold_cranking_amps,omitempty"`
	Voltage          int  `json:"voltage"`
}

var (
	// 60Ah, 100 Ah
	batteryCapacityRe = regexp.MustCompile(`\b(\d{2,3})\s*[Aa][Hh]\b`)
	// 540A cold cranking amps; the trailing word boundary keeps "Ah" out
	batteryCCARe = regexp.MustCompile(`\b(\d{3,4})\s*A\b`)
	// 12V
	batteryVoltageRe = regexp.MustCompile(`\b(\d{1,2})\s*[Vv]\b`)
)

const defaultBatteryVoltage = 12

func parseBattery(title string) Result {
	res := Result{Category: models.CategoryBattery}
	attrs := BatteryAttributes{Voltage: defaultBatteryVoltage}

	found := false
	if m := batteryCapacityRe.FindStringSubmatch(title); m != nil {
		capacity, _ := strconv.Atoi(m[1])
		attrs.CapacityAh = capacity
		res.Fields = append(res.Fields, ok("capacity_ah", capacity, 0.95))
		found = true
	} else {
		res.Fields = append(res.Fields, miss("capacity_ah", "no Ah rating in title"))
	}

	if cca, ccaOK := extractCCA(title, attrs.CapacityAh); ccaOK {
		attrs.ColdCrankingAmps = &cca
		res.Fields = append(res.Fields, ok("cold_cranking_amps", cca, 0.85))
	} else {
		res.Fields = append(res.Fields, miss("cold_cranking_amps", "no cranking amps rating in title"))
	}

	if m := batteryVoltageRe.FindStringSubmatch(title); m != nil {
		voltage, _ := strconv.Atoi(m[1])
		attrs.Voltage = voltage
		res.Fields = append(res.Fields, ok("voltage", voltage, 0.9))
	} else {
		// Automotive batteries are 12V unless the title says otherwise.
		res.Fields = append(res.Fields, ok("voltage", defaultBatteryVoltage, 0.5))
	}

	// Only the capacity is required for a battery.
	res.Success = found
	res.Battery = &attrs
	return res
}

// extractCCA finds a bare amp rating distinct from the Ah capacity.
func extractCCA(title string, capacity int) (int, bool) {
	for _, m := range batteryCCARe.FindAllStringSubmatch(title, -1) {
		cca, _ := strconv.Atoi(m[1])
		if cca == capacity {
			continue
		}
		return cca, true
	}
	return 0, false
}
