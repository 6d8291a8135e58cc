package census

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrJoinMismatch marks an identifier present in one source but not the
// other. It is reported, never fatal: the asymmetric handling below is
// intentional, because geographic completeness drives the map layer while
// demographic completeness drives the risk layer.
var ErrJoinMismatch = eris.New("census: identifier mismatch between geography and demographics")

// JoinStats counts the outcome of one city's identifier join.
type JoinStats struct {
	Matched         int
	GeographyOnly   int // units kept with missing demographics
	DemographicOnly int // records dropped with a warning
}

// Join matches demographic records onto geographic unit identifiers by exact
// equality. No fuzzy matching, no coordinate fallback. The result maps unit
// ID to its record; units absent from the map have missing demographics.
// Demographic records whose unit no longer exists spatially are dropped and
// warned about.
func Join(unitIDs []string, records []Record) (map[string]Record, JoinStats) {
	log := zap.L().With(zap.String("component", "census"))

	known := make(map[string]bool, len(unitIDs))
	for _, id := range unitIDs {
		known[id] = true
	}

	var stats JoinStats
	joined := make(map[string]Record, len(records))
	for _, rec := range records {
		if !known[rec.UnitID] {
			stats.DemographicOnly++
			log.Warn("dropping demographic record without geographic unit",
				zap.String("unit_id", rec.UnitID),
				zap.Error(eris.Wrapf(ErrJoinMismatch, "unit %s", rec.UnitID)),
			)
			continue
		}
		if _, dup := joined[rec.UnitID]; dup {
			log.Warn("duplicate demographic record, keeping the last one",
				zap.String("unit_id", rec.UnitID),
			)
		} else {
			stats.Matched++
		}
		joined[rec.UnitID] = rec
	}

	stats.GeographyOnly = len(unitIDs) - stats.Matched
	return joined, stats
}
