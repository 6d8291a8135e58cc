package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/heatwatch-fr/heatrisk-cli/internal/reduce"
	"github.com/heatwatch-fr/heatrisk-cli/internal/risk"
)

// unitRow is the flat per-unit output record shared by the CSV file and the
// GeoJSON properties. Pointer fields encode as empty when missing so a blank
// cell never masquerades as zero.
type unitRow struct {
	UnitID           string   `csv:"unit_id" json:"unit_id"`
	Name             string   `csv:"name" json:"name,omitempty"`
	Commune          string   `csv:"commune" json:"commune,omitempty"`
	HeatCategory     string   `csv:"heat_category" json:"heat_category"`
	TotalPopulation  *int     `csv:"total_population" json:"total_population,omitempty"`
	Count55PlusAlone *int     `csv:"count_55_plus_alone" json:"count_55_plus_alone,omitempty"`
	Count80PlusAlone *int     `csv:"count_80_plus_alone" json:"count_80_plus_alone,omitempty"`
	PctElderly       *float64 `csv:"pct_elderly" json:"pct_elderly,omitempty"`
	RiskIndex        *int     `csv:"risk_index" json:"risk_index,omitempty"`
	ExtremeRiskIndex *int     `csv:"extreme_risk_index" json:"extreme_risk_index,omitempty"`
}

func buildRow(u *reduce.Unit, s risk.UnitStats) unitRow {
	row := unitRow{
		UnitID:       u.ID,
		Name:         u.Name,
		Commune:      u.Commune,
		HeatCategory: categoryLabel(s),
	}
	if s.Demographics != nil {
		row.TotalPopulation = s.Demographics.TotalPopulation
		row.Count55PlusAlone = s.Demographics.Count55PlusAlone
		row.Count80PlusAlone = s.Demographics.Count80PlusAlone
		row.PctElderly = s.Demographics.PctElderly
	}
	if s.Risk != nil {
		row.RiskIndex = &s.Risk.RiskIndex
		row.ExtremeRiskIndex = &s.Risk.ExtremeRiskIndex
	}
	return row
}

func categoryLabel(s risk.UnitStats) string {
	if !s.Classified {
		return "Unclassified"
	}
	return s.Category.String()
}

// writeCityOutputs writes the three per-city files. Each file lands via a
// temp-file rename so readers never observe a half-written output.
func (r *Runner) writeCityOutputs(basename string, units []*reduce.Unit, stats []risk.UnitStats, summary risk.CitySummary) error {
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create output dir %s", r.outDir)
	}

	rows := make([]unitRow, len(units))
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, len(units))}
	for i, u := range units {
		rows[i] = buildRow(u, stats[i])

		props, err := rowProperties(rows[i])
		if err != nil {
			return eris.Wrapf(err, "pipeline: encode properties for unit %s", u.ID)
		}
		fc.Features[i] = &geojson.Feature{
			ID:         u.ID,
			Geometry:   u.Geom,
			Properties: props,
		}
	}

	geoData, err := json.MarshalIndent(&fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal feature collection")
	}
	if err := writeFileAtomic(filepath.Join(r.outDir, basename+"_units.geojson"), geoData); err != nil {
		return err
	}

	csvData, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal unit rows")
	}
	if err := writeFileAtomic(filepath.Join(r.outDir, basename+"_units.csv"), csvData); err != nil {
		return err
	}

	summaryData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal summary")
	}
	return writeFileAtomic(filepath.Join(r.outDir, basename+"_summary.json"), summaryData)
}

// rowProperties flattens a unit row into GeoJSON properties through its JSON
// tags, so the CSV and GeoJSON views of a unit can never drift apart.
func rowProperties(row unitRow) (map[string]any, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var props map[string]any
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, err
	}
	return props, nil
}

func (r *Runner) writeBatchReport(report *BatchReport) error {
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create output dir %s", r.outDir)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal batch report")
	}
	return writeFileAtomic(filepath.Join(r.outDir, "batch_report.json"), data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "pipeline: create temp file in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "pipeline: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "pipeline: close %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "pipeline: rename into %s", path)
	}
	return nil
}
