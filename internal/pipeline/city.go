package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/heatwatch-fr/heatrisk-cli/internal/census"
	"github.com/heatwatch-fr/heatrisk-cli/internal/gisload"
	"github.com/heatwatch-fr/heatrisk-cli/internal/reduce"
	"github.com/heatwatch-fr/heatrisk-cli/internal/risk"
)

// ErrCityFailed marks a city whose run aborted at some stage. The batch
// driver detects it with eris.Is and keeps processing the other cities.
var ErrCityFailed = eris.New("pipeline: city failed")

// StageResult records one stage's outcome for the batch report.
type StageResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Duration int64  `json:"duration_ms"`
	Error    string `json:"error,omitempty"`
}

// Exclusions counts every feature the run dropped or left unmatched. These
// are the audit trail: nothing disappears from the inputs without a number
// here.
type Exclusions struct {
	PolygonsUnknownCode int `json:"polygons_unknown_code"`
	PolygonsBadShape    int `json:"polygons_bad_shape"`
	PolygonsDegenerate  int `json:"polygons_degenerate"`
	PolygonsOutside     int `json:"polygons_outside_units"`
	DemographicOrphans  int `json:"demographic_orphans"`
	UnitsWithoutDemo    int `json:"units_without_demographics"`
}

// CityResult is one city's entry in the batch report.
type CityResult struct {
	City       string        `json:"city"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Duration   int64         `json:"duration_ms"`
	Units      int           `json:"units"`
	Stages     []StageResult `json:"stages"`
	Exclusions Exclusions    `json:"exclusions"`
}

const (
	statusOK     = "ok"
	statusFailed = "failed"
)

// Runner executes city runs and writes their outputs.
type Runner struct {
	outDir      string
	concurrency int
}

// NewRunner returns a Runner writing into outDir with the given city-level
// concurrency limit.
func NewRunner(outDir string, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{outDir: outDir, concurrency: concurrency}
}

// RunCity runs the full stage sequence for one city. Outputs are written only
// at the end, after every stage has succeeded; a failing stage leaves no
// partial files behind. The returned CityResult is non-nil even on failure so
// the batch report can carry the stage trace.
func (r *Runner) RunCity(ctx context.Context, desc CityDescriptor) (*CityResult, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("city", desc.Name))
	log.Info("starting city run")

	result := &CityResult{City: desc.Name, Status: statusOK}
	start := time.Now()

	trackStage := func(name string, fn func() error) error {
		stageStart := time.Now()
		err := fn()
		duration := time.Since(stageStart).Milliseconds()

		stage := StageResult{Name: name, Status: statusOK, Duration: duration}
		if err != nil {
			stage.Status = statusFailed
			stage.Error = err.Error()
			log.Error("stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
		} else {
			log.Info("stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
			)
		}
		result.Stages = append(result.Stages, stage)
		return err
	}

	fail := func(stage string, err error) (*CityResult, error) {
		result.Status = statusFailed
		result.Error = err.Error()
		result.Duration = time.Since(start).Milliseconds()
		return result, eris.Wrapf(ErrCityFailed, "city %s: stage %s: %v", desc.Name, stage, err)
	}

	if err := ctx.Err(); err != nil {
		return fail("start", err)
	}

	var polygons []gisload.ClassificationFeature
	if err := trackStage("load_classification", func() error {
		feats, stats, err := gisload.LoadClassification(desc.Classification.Path, desc.Classification.CodeField)
		if err != nil {
			return err
		}
		polygons = feats
		result.Exclusions.PolygonsUnknownCode = stats.SkippedCode
		result.Exclusions.PolygonsBadShape = stats.SkippedShape
		return nil
	}); err != nil {
		return fail("load_classification", err)
	}

	var unitFeatures []gisload.UnitFeature
	if err := trackStage("load_units", func() error {
		feats, err := gisload.LoadUnits(
			desc.Boundaries.Path,
			desc.Boundaries.IDField,
			desc.Boundaries.NameField,
			desc.Boundaries.CommuneField,
		)
		if err != nil {
			return err
		}
		unitFeatures = feats
		return nil
	}); err != nil {
		return fail("load_units", err)
	}

	var units []*reduce.Unit
	if err := trackStage("reduce", func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var stats reduce.Stats
		units, stats = reduce.Assign(unitFeatures, polygons)
		result.Exclusions.PolygonsDegenerate = stats.PolygonsDropped
		result.Exclusions.PolygonsOutside = stats.PolygonsOutside
		log.Info("reduction complete",
			zap.Int("units", stats.Units),
			zap.Int("classified", stats.Classified),
			zap.Int("unclassified", stats.Unclassified),
			zap.Int("polygons_assigned", stats.PolygonsAssigned),
		)
		return nil
	}); err != nil {
		return fail("reduce", err)
	}
	result.Units = len(units)

	var records []census.Record
	if err := trackStage("load_demographics", func() error {
		recs, err := census.LoadTable(desc.Demographics.Path, desc.Demographics.Schema)
		if err != nil {
			return err
		}
		records = recs
		return nil
	}); err != nil {
		return fail("load_demographics", err)
	}

	var joined map[string]census.Record
	if err := trackStage("join", func() error {
		ids := make([]string, len(units))
		for i, u := range units {
			ids[i] = u.ID
		}
		var stats census.JoinStats
		joined, stats = census.Join(ids, records)
		result.Exclusions.DemographicOrphans = stats.DemographicOnly
		result.Exclusions.UnitsWithoutDemo = stats.GeographyOnly
		return nil
	}); err != nil {
		return fail("join", err)
	}

	var unitStats []risk.UnitStats
	if err := trackStage("score", func() error {
		unitStats = make([]risk.UnitStats, 0, len(units))
		for _, u := range units {
			var demo *census.Record
			if rec, ok := joined[u.ID]; ok {
				demo = &rec
			}
			unitStats = append(unitStats, risk.UnitStats{
				ID:           u.ID,
				Category:     u.Category,
				Classified:   u.Classified,
				Demographics: demo,
				Risk:         risk.Score(u.ID, u.Category, u.Classified, demo),
			})
		}
		return nil
	}); err != nil {
		return fail("score", err)
	}

	var summary risk.CitySummary
	if err := trackStage("summarize", func() error {
		summary = risk.Summarize(desc.Name, unitStats)
		return nil
	}); err != nil {
		return fail("summarize", err)
	}

	if err := trackStage("write_outputs", func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return r.writeCityOutputs(desc.Basename(), units, unitStats, summary)
	}); err != nil {
		return fail("write_outputs", err)
	}

	result.Duration = time.Since(start).Milliseconds()
	log.Info("city run complete",
		zap.Int64("duration_ms", result.Duration),
		zap.Int("units", result.Units),
		zap.Int("classified", summary.ClassifiedUnits),
	)
	return result, nil
}
