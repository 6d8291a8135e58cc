package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwatch-fr/heatrisk-cli/internal/risk"
)

func TestRunCity(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	desc := fixtureCity(t, dir, "testville")

	runner := NewRunner(outDir, 1)
	result, err := runner.RunCity(context.Background(), desc)
	require.NoError(t, err)

	assert.Equal(t, statusOK, result.Status)
	assert.Equal(t, 3, result.Units)
	assert.Equal(t, Exclusions{}, result.Exclusions, "clean inputs drop nothing")

	// CSV: one row per unit, with absence encoded as blank cells.
	csvData, err := os.ReadFile(filepath.Join(outDir, "testville_units.csv"))
	require.NoError(t, err)
	var rows []unitRow
	require.NoError(t, csvutil.Unmarshal(csvData, &rows))
	require.Len(t, rows, 3)

	byID := make(map[string]unitRow, len(rows))
	for _, row := range rows {
		byID[row.UnitID] = row
	}

	a := byID["A"]
	assert.Equal(t, "High", a.HeatCategory)
	assert.Equal(t, "Quartier Nord", a.Name)
	require.NotNil(t, a.RiskIndex)
	assert.Equal(t, 20, *a.RiskIndex)
	require.NotNil(t, a.ExtremeRiskIndex)
	assert.Equal(t, 8, *a.ExtremeRiskIndex)

	b := byID["B"]
	assert.Equal(t, "Low", b.HeatCategory)
	require.NotNil(t, b.RiskIndex, "Low risk is a real zero, not absent")
	assert.Equal(t, 0, *b.RiskIndex)

	c := byID["C"]
	assert.Equal(t, "Unclassified", c.HeatCategory)
	assert.Nil(t, c.RiskIndex, "unclassified unit has no risk, not zero")
	require.NotNil(t, c.TotalPopulation)
	assert.Equal(t, 500, *c.TotalPopulation)

	// Summary: High-population share counts every unit with demographics.
	summaryData, err := os.ReadFile(filepath.Join(outDir, "testville_summary.json"))
	require.NoError(t, err)
	var summary risk.CitySummary
	require.NoError(t, json.Unmarshal(summaryData, &summary))

	assert.Equal(t, "testville", summary.City)
	assert.Equal(t, 3, summary.Units)
	assert.Equal(t, 2, summary.ClassifiedUnits)
	assert.Equal(t, 1, summary.UnclassifiedUnits)
	assert.Equal(t, 3500, summary.TotalPopulation)
	assert.Equal(t, 1000, summary.PopulationHigh)
	assert.InDelta(t, 100*1000.0/3500.0, summary.PctPopulationHigh, 1e-9)
	require.NotEmpty(t, summary.TopUnits)
	assert.Equal(t, "A", summary.TopUnits[0].UnitID)

	// GeoJSON: a feature per unit, geometry plus the flat properties.
	geoData, err := os.ReadFile(filepath.Join(outDir, "testville_units.geojson"))
	require.NoError(t, err)
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         string          `json:"id"`
			Geometry   json.RawMessage `json:"geometry"`
			Properties unitRow         `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(geoData, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 3)
	for _, f := range fc.Features {
		assert.NotEmpty(t, f.Geometry)
		assert.Equal(t, f.ID, f.Properties.UnitID)
	}
}

func TestRunCityFailureLeavesNoOutputs(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	desc := fixtureCity(t, dir, "broken")
	desc.Demographics.Path = filepath.Join(dir, "missing.csv")

	runner := NewRunner(outDir, 1)
	result, err := runner.RunCity(context.Background(), desc)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrCityFailed))

	require.NotNil(t, result)
	assert.Equal(t, statusFailed, result.Status)
	assert.NotEmpty(t, result.Error)

	last := result.Stages[len(result.Stages)-1]
	assert.Equal(t, "load_demographics", last.Name)
	assert.Equal(t, statusFailed, last.Status)

	// Nothing may be written for a failed city.
	entries, readErr := os.ReadDir(outDir)
	if readErr == nil {
		assert.Empty(t, entries)
	}
}

func TestRunCityCancelled(t *testing.T) {
	dir := t.TempDir()
	desc := fixtureCity(t, dir, "cancelled")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(filepath.Join(dir, "out"), 1)
	_, err := runner.RunCity(ctx, desc)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrCityFailed))
}
