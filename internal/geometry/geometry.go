// Package geometry provides the planar predicates the spatial reducer needs:
// representative points for classification polygons and strict interior
// containment for administrative boundaries. All coordinates are assumed to be
// in one shared planar reference system per city.
package geometry

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
)

// ErrDegenerateGeometry marks a polygon that cannot yield a valid
// representative point (zero area, too few vertices, or non-finite
// coordinates). The offending feature is excluded from aggregation; the city
// run continues.
var ErrDegenerateGeometry = eris.New("geometry: degenerate polygon")

// RepresentativePoint returns a point guaranteed to lie inside the polygon.
// It prefers the area-weighted centroid; when the centroid falls outside a
// concave or ringed polygon it falls back to an interior point found by a
// horizontal scan through the centroid's Y.
func RepresentativePoint(g geom.T) (geom.Coord, error) {
	polys, err := polygons(g)
	if err != nil {
		return nil, err
	}
	if err := checkDegenerate(polys); err != nil {
		return nil, err
	}

	centroid := xy.PolygonsCentroid(polys[0], polys[1:]...)
	if len(centroid) >= 2 && isFinite(centroid[0]) && isFinite(centroid[1]) && ContainsInterior(g, centroid) {
		return centroid, nil
	}

	// Centroid landed outside (or on the boundary): scan the largest
	// constituent polygon for an interior point. Area is compared unsigned
	// because ring winding varies by source.
	largest := polys[0]
	for _, p := range polys[1:] {
		if math.Abs(p.Area()) > math.Abs(largest.Area()) {
			largest = p
		}
	}
	pt, err := interiorPoint(largest, centroid)
	if err != nil {
		return nil, err
	}
	return pt, nil
}

// ContainsInterior reports whether pt lies strictly inside g. Boundary points
// are excluded so a representative point sitting exactly on a shared edge is
// never counted for two adjacent units.
func ContainsInterior(g geom.T, pt geom.Coord) bool {
	polys, err := polygons(g)
	if err != nil {
		return false
	}
	for _, p := range polys {
		if polygonContainsInterior(p, pt) {
			return true
		}
	}
	return false
}

func polygonContainsInterior(p *geom.Polygon, pt geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	outer := p.LinearRing(0)
	if xy.LocatePointInRing(p.Layout(), pt, outer.FlatCoords()) != location.Interior {
		return false
	}
	// Inside a hole, or on a hole boundary, is not inside the polygon.
	for i := 1; i < p.NumLinearRings(); i++ {
		hole := p.LinearRing(i)
		if xy.LocatePointInRing(p.Layout(), pt, hole.FlatCoords()) != location.Exterior {
			return false
		}
	}
	return true
}

// polygons flattens a polygonal geometry into its constituent polygons.
func polygons(g geom.T) ([]*geom.Polygon, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}, nil
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil, eris.Wrap(ErrDegenerateGeometry, "empty multipolygon")
		}
		polys := make([]*geom.Polygon, t.NumPolygons())
		for i := range polys {
			polys[i] = t.Polygon(i)
		}
		return polys, nil
	default:
		return nil, eris.Wrapf(ErrDegenerateGeometry, "unsupported geometry type %T", g)
	}
}

func checkDegenerate(polys []*geom.Polygon) error {
	var area float64
	for _, p := range polys {
		if p.NumLinearRings() == 0 {
			return eris.Wrap(ErrDegenerateGeometry, "polygon without rings")
		}
		flat := p.LinearRing(0).FlatCoords()
		if len(flat) < 3*p.Layout().Stride() {
			return eris.Wrap(ErrDegenerateGeometry, "outer ring has fewer than 3 vertices")
		}
		for _, v := range flat {
			if !isFinite(v) {
				return eris.Wrap(ErrDegenerateGeometry, "non-finite coordinate")
			}
		}
		// Unsigned: a clockwise-wound ring is a valid polygon, not a
		// degenerate one.
		area += math.Abs(p.Area())
	}
	if area <= 0 {
		return eris.Wrap(ErrDegenerateGeometry, "zero area")
	}
	return nil
}

// interiorPoint finds a point strictly inside the polygon by intersecting the
// horizontal line through refY with every ring edge and taking the midpoint of
// the widest interior interval (even-odd rule).
func interiorPoint(p *geom.Polygon, centroid geom.Coord) (geom.Coord, error) {
	// For a disjoint multipolygon the overall centroid can lie entirely
	// outside this polygon's vertical extent; scan the polygon's own
	// midline instead.
	minY, maxY := outerYBounds(p)
	refY := (minY + maxY) / 2
	if len(centroid) >= 2 && isFinite(centroid[1]) && centroid[1] > minY && centroid[1] < maxY {
		refY = centroid[1]
	}

	xs := rayCrossings(p, refY)
	if len(xs) < 2 {
		// A scan exactly through a vertex can miss crossings; nudge once.
		refY += outerYSpan(p) / 1e3
		xs = rayCrossings(p, refY)
	}
	if len(xs) < 2 {
		return nil, eris.Wrap(ErrDegenerateGeometry, "no interior interval found")
	}

	sort.Float64s(xs)
	bestMid, bestWidth := 0.0, -1.0
	for i := 0; i+1 < len(xs); i += 2 {
		width := xs[i+1] - xs[i]
		if width > bestWidth {
			bestWidth = width
			bestMid = (xs[i] + xs[i+1]) / 2
		}
	}
	if bestWidth <= 0 {
		return nil, eris.Wrap(ErrDegenerateGeometry, "empty interior interval")
	}
	return geom.Coord{bestMid, refY}, nil
}

// rayCrossings returns the X coordinates where the horizontal line y=refY
// crosses any ring of the polygon. Half-open edge classification keeps
// vertices from being counted twice.
func rayCrossings(p *geom.Polygon, refY float64) []float64 {
	var xs []float64
	stride := p.Layout().Stride()
	for r := 0; r < p.NumLinearRings(); r++ {
		flat := p.LinearRing(r).FlatCoords()
		n := len(flat) / stride
		for i := 0; i < n; i++ {
			x1, y1 := flat[i*stride], flat[i*stride+1]
			j := (i + 1) % n
			x2, y2 := flat[j*stride], flat[j*stride+1]
			if (y1 > refY) == (y2 > refY) {
				continue
			}
			xs = append(xs, x1+(refY-y1)*(x2-x1)/(y2-y1))
		}
	}
	return xs
}

func outerYBounds(p *geom.Polygon) (minY, maxY float64) {
	flat := p.LinearRing(0).FlatCoords()
	stride := p.Layout().Stride()
	minY, maxY = math.Inf(1), math.Inf(-1)
	for i := 0; i+1 < len(flat); i += stride {
		minY = math.Min(minY, flat[i+1])
		maxY = math.Max(maxY, flat[i+1])
	}
	return minY, maxY
}

func outerYSpan(p *geom.Polygon) float64 {
	minY, maxY := outerYBounds(p)
	span := maxY - minY
	if span <= 0 || !isFinite(span) {
		return 1
	}
	return span
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
