package risk

import (
	"sort"

	"github.com/heatwatch-fr/heatrisk-cli/internal/census"
	"github.com/heatwatch-fr/heatrisk-cli/internal/lcz"
)

// topN is the length of the ranked unit list in a city summary.
const topN = 20

// UnitStats is the per-unit input to summarization: the reduction outcome,
// the joined demographics (nil when missing), and the derived risk record
// (nil when excluded from ranking).
type UnitStats struct {
	ID           string
	Category     lcz.Category
	Classified   bool
	Demographics *census.Record
	Risk         *Record
}

// RankedUnit is one entry of the top-N ranking.
type RankedUnit struct {
	UnitID           string `json:"unit_id"`
	Category         string `json:"category"`
	RiskIndex        int    `json:"risk_index"`
	ExtremeRiskIndex int    `json:"extreme_risk_index"`
}

// CitySummary aggregates one city's reduced, joined, and scored units.
type CitySummary struct {
	City string `json:"city"`

	Units             int `json:"units"`
	ClassifiedUnits   int `json:"classified_units"`
	UnclassifiedUnits int `json:"unclassified_units"`
	UnitsWithDemo     int `json:"units_with_demographics"`

	CategoryCounts map[string]int `json:"category_counts"`

	TotalPopulation     int     `json:"total_population"`
	PopulationHigh      int     `json:"population_in_high"`
	PctPopulationHigh   float64 `json:"pct_population_in_high"`
	ElderlyAlone        int     `json:"elderly_alone_total"`
	ElderlyAloneHigh    int     `json:"elderly_alone_in_high"`
	PctElderlyAloneHigh float64 `json:"pct_elderly_alone_in_high"`

	TopUnits []RankedUnit `json:"top_units"`
}

// Summarize computes the city-level aggregates. Units with missing
// demographics contribute to unit counts and category distribution but are
// excluded from every population aggregate; unclassified units never count as
// High. The top-N ranking is deterministic: risk index descending, then
// extreme risk index descending, then identifier ascending.
func Summarize(city string, units []UnitStats) CitySummary {
	s := CitySummary{
		City:           city,
		Units:          len(units),
		CategoryCounts: map[string]int{},
	}

	var ranked []UnitStats
	for _, u := range units {
		if !u.Classified {
			s.UnclassifiedUnits++
			s.CategoryCounts["Unclassified"]++
		} else {
			s.ClassifiedUnits++
			s.CategoryCounts[u.Category.String()]++
		}

		if u.Demographics == nil || !u.Demographics.Complete() {
			continue
		}
		s.UnitsWithDemo++
		s.TotalPopulation += *u.Demographics.TotalPopulation
		s.ElderlyAlone += *u.Demographics.Count55PlusAlone
		if u.Classified && u.Category == lcz.High {
			s.PopulationHigh += *u.Demographics.TotalPopulation
			s.ElderlyAloneHigh += *u.Demographics.Count55PlusAlone
		}

		if u.Risk != nil {
			ranked = append(ranked, u)
		}
	}

	if s.TotalPopulation > 0 {
		s.PctPopulationHigh = 100 * float64(s.PopulationHigh) / float64(s.TotalPopulation)
	}
	if s.ElderlyAlone > 0 {
		s.PctElderlyAloneHigh = 100 * float64(s.ElderlyAloneHigh) / float64(s.ElderlyAlone)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i].Risk, ranked[j].Risk
		if a.RiskIndex != b.RiskIndex {
			return a.RiskIndex > b.RiskIndex
		}
		if a.ExtremeRiskIndex != b.ExtremeRiskIndex {
			return a.ExtremeRiskIndex > b.ExtremeRiskIndex
		}
		return a.UnitID < b.UnitID
	})

	n := len(ranked)
	if n > topN {
		n = topN
	}
	s.TopUnits = make([]RankedUnit, 0, n)
	for _, u := range ranked[:n] {
		s.TopUnits = append(s.TopUnits, RankedUnit{
			UnitID:           u.Risk.UnitID,
			Category:         u.Risk.Category.String(),
			RiskIndex:        u.Risk.RiskIndex,
			ExtremeRiskIndex: u.Risk.ExtremeRiskIndex,
		})
	}

	return s
}
