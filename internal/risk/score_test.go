package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwatch-fr/heatrisk-cli/internal/census"
	"github.com/heatwatch-fr/heatrisk-cli/internal/lcz"
)

func intp(n int) *int           { return &n }
func floatp(f float64) *float64 { return &f }

func demo(pop, c55, c80 int, pct float64) *census.Record {
	return &census.Record{
		TotalPopulation:  intp(pop),
		Count55PlusAlone: intp(c55),
		Count80PlusAlone: intp(c80),
		PctElderly:       floatp(pct),
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		category    lcz.Category
		classified  bool
		demo        *census.Record
		wantRisk    int
		wantExtreme int
	}{
		{"high category doubles counts", lcz.High, true, demo(2500, 10, 4, 20), 20, 8},
		{"moderate category keeps counts", lcz.Moderate, true, demo(2500, 10, 4, 20), 10, 4},
		{"low category is always zero", lcz.Low, true, demo(2500, 500, 200, 60), 0, 0},
		{"zero vulnerable population", lcz.High, true, demo(2500, 0, 0, 5), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Score("751010101", tt.category, tt.classified, tt.demo)
			require.NotNil(t, rec)
			assert.Equal(t, "751010101", rec.UnitID)
			assert.Equal(t, tt.category, rec.Category)
			assert.Equal(t, tt.wantRisk, rec.RiskIndex)
			assert.Equal(t, tt.wantExtreme, rec.ExtremeRiskIndex)
		})
	}
}

func TestScoreAbsenceIsNotZero(t *testing.T) {
	incomplete := demo(2500, 10, 4, 20)
	incomplete.Count80PlusAlone = nil

	tests := []struct {
		name       string
		classified bool
		demo       *census.Record
	}{
		{"unclassified unit", false, demo(2500, 10, 4, 20)},
		{"no demographics", true, nil},
		{"incomplete demographics", true, incomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Score("u", lcz.High, tt.classified, tt.demo),
				"unknown risk must stay nil, never a coerced zero")
		})
	}
}
