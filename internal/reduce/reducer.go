// Package reduce assigns each administrative unit a single heat category by
// collecting the classification polygons whose representative points fall
// inside the unit and taking the modal category.
//
// Representative-point attribution is a documented approximation: it avoids
// polygon-intersection geometry while keeping the assignment deterministic. A
// unit covered only by polygons whose representative points land outside it
// stays unclassified rather than guessing a fallback.
package reduce

import (
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/heatwatch-fr/heatrisk-cli/internal/geometry"
	"github.com/heatwatch-fr/heatrisk-cli/internal/gisload"
	"github.com/heatwatch-fr/heatrisk-cli/internal/lcz"
)

// Unit is an administrative unit after spatial reduction. Category is only
// meaningful when Classified is true; unclassified units are never silently
// defaulted to Low.
type Unit struct {
	ID         string
	Name       string
	Commune    string
	Geom       geom.T
	Category   lcz.Category
	Classified bool
}

// Stats counts what the reducer did for one city.
type Stats struct {
	Units            int
	Classified       int
	Unclassified     int
	PolygonsAssigned int
	PolygonsOutside  int // representative point fell in no unit
	PolygonsDropped  int // degenerate geometry
}

// Assign reduces classification polygons onto administrative units. A
// classification polygon that cannot yield a representative point is dropped
// and counted without aborting the run. The per-unit containment test is pure
// and order-independent, so results do not depend on input ordering.
func Assign(units []gisload.UnitFeature, polygons []gisload.ClassificationFeature) ([]*Unit, Stats) {
	log := zap.L().With(zap.String("component", "reduce"))

	out := make([]*Unit, len(units))
	for i, u := range units {
		out[i] = &Unit{ID: u.ID, Name: u.Name, Commune: u.Commune, Geom: u.Geom}
	}

	stats := Stats{Units: len(units)}
	counts := make([]map[lcz.Category]int, len(units))

	for _, poly := range polygons {
		pt, err := geometry.RepresentativePoint(poly.Geom)
		if err != nil {
			stats.PolygonsDropped++
			log.Warn("dropping classification polygon without representative point",
				zap.String("code", string(poly.Code)),
				zap.Error(err),
			)
			continue
		}

		cat, err := lcz.CategoryOf(poly.Code)
		if err != nil {
			// Loaders filter unknown codes; a stray one here still must
			// not bias the mode.
			stats.PolygonsDropped++
			log.Warn("dropping classification polygon with unmapped code",
				zap.String("code", string(poly.Code)),
				zap.Error(err),
			)
			continue
		}

		assigned := false
		for i := range units {
			if !geometry.ContainsInterior(units[i].Geom, pt) {
				continue
			}
			if counts[i] == nil {
				counts[i] = make(map[lcz.Category]int)
			}
			counts[i][cat]++
			assigned = true
			// Strict interior containment means at most one unit can
			// contain the point, except for overlapping unit geometries.
			break
		}
		if assigned {
			stats.PolygonsAssigned++
		} else {
			stats.PolygonsOutside++
		}
	}

	for i, u := range out {
		if len(counts[i]) == 0 {
			stats.Unclassified++
			continue
		}
		u.Category = Modal(counts[i])
		u.Classified = true
		stats.Classified++
	}

	return out, stats
}

// Modal returns the most frequent category in the multiset. Ties break toward
// the higher-risk category (High > Moderate > Low), so the reduction is
// deterministic and conservative.
func Modal(counts map[lcz.Category]int) lcz.Category {
	best := lcz.Low
	bestCount := -1
	for _, cat := range []lcz.Category{lcz.High, lcz.Moderate, lcz.Low} {
		if n := counts[cat]; n > bestCount {
			best = cat
			bestCount = n
		}
	}
	return best
}
