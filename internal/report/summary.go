package report

import "traffic-insights-go/internal/types"

// Insight aggregates a batch of records for the Summary sheet and the final
// log line.
type Insight struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByCarType  map[string]int `json:"by_car_type"`
}

func Summarize(records []types.StructuredRecord) Insight {
	bySev := map[string]int{}
	byType := map[string]int{}
	for _, r := range records {
		if r.InfractionSeverity != "" {
			bySev[string(r.InfractionSeverity)]++
		}
		if r.CarType != "" {
			byType[string(r.CarType)]++
		}
	}
	return Insight{Total: len(records), BySeverity: bySev, ByCarType: byType}
}
