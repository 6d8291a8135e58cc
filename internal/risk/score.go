// Package risk computes per-unit heat risk indices and per-city summaries.
package risk

import (
	"github.com/heatwatch-fr/heatrisk-cli/internal/census"
	"github.com/heatwatch-fr/heatrisk-cli/internal/lcz"
)

// Record holds the derived risk indices for one unit. Both indices are exact
// non-negative integers: category multiplier × vulnerable count, with no
// normalization (display bucketing is a presentation concern).
type Record struct {
	UnitID           string
	Category         lcz.Category
	RiskIndex        int
	ExtremeRiskIndex int
}

// Score derives a risk record for one unit. It returns nil when the unit is
// unclassified or its demographics are incomplete: "unknown" must stay
// distinguishable from a legitimate risk of 0 (Low category, or no vulnerable
// population), so absence is never coerced to zero.
func Score(unitID string, category lcz.Category, classified bool, demo *census.Record) *Record {
	if !classified || demo == nil || !demo.Complete() {
		return nil
	}
	m := category.Multiplier()
	return &Record{
		UnitID:           unitID,
		Category:         category,
		RiskIndex:        m * *demo.Count55PlusAlone,
		ExtremeRiskIndex: m * *demo.Count80PlusAlone,
	}
}
