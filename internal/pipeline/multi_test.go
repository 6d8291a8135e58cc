package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAll(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	descs := []CityDescriptor{
		fixtureCity(t, dir, "alpha"),
		fixtureCity(t, dir, "beta"),
	}

	runner := NewRunner(outDir, 2)
	report, err := runner.RunAll(context.Background(), descs)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Cities, 2)
	assert.Equal(t, "alpha", report.Cities[0].City, "report order is alphabetical")
	assert.Equal(t, "beta", report.Cities[1].City)

	for _, base := range []string{"alpha", "beta"} {
		for _, suffix := range []string{"_units.geojson", "_units.csv", "_summary.json"} {
			_, statErr := os.Stat(filepath.Join(outDir, base+suffix))
			assert.NoError(t, statErr, base+suffix)
		}
	}

	data, err := os.ReadFile(filepath.Join(outDir, "batch_report.json"))
	require.NoError(t, err)
	var onDisk BatchReport
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, report.RunID, onDisk.RunID)
}

func TestRunAllFailingCityIsolated(t *testing.T) {
	dir := t.TempDir()

	// Same roster twice, once with a broken city added; the healthy city's
	// outputs must be byte-identical across the two runs.
	good := fixtureCity(t, dir, "goodcity")
	bad := fixtureCity(t, dir, "badcity")
	bad.Boundaries.Path = filepath.Join(dir, "nope.shp")

	mixedOut := filepath.Join(dir, "mixed")
	report, err := NewRunner(mixedOut, 2).RunAll(context.Background(), []CityDescriptor{good, bad})
	require.NoError(t, err, "one failing city must not fail the batch")
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	_, statErr := os.Stat(filepath.Join(mixedOut, "badcity_summary.json"))
	assert.True(t, os.IsNotExist(statErr), "failed city must leave no outputs")

	cleanOut := filepath.Join(dir, "clean")
	_, err = NewRunner(cleanOut, 2).RunAll(context.Background(), []CityDescriptor{good})
	require.NoError(t, err)

	for _, suffix := range []string{"_units.geojson", "_units.csv", "_summary.json"} {
		mixed, readErr := os.ReadFile(filepath.Join(mixedOut, "goodcity"+suffix))
		require.NoError(t, readErr)
		clean, readErr := os.ReadFile(filepath.Join(cleanOut, "goodcity"+suffix))
		require.NoError(t, readErr)
		assert.Equal(t, clean, mixed, "goodcity"+suffix)
	}
}

func TestRunAllEveryCityFailed(t *testing.T) {
	dir := t.TempDir()
	bad := fixtureCity(t, dir, "badcity")
	bad.Classification.Path = filepath.Join(dir, "nope.shp")

	report, err := NewRunner(filepath.Join(dir, "out"), 1).RunAll(context.Background(), []CityDescriptor{bad})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrAllCitiesFailed))
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Failed)
}
