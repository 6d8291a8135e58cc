package geometry

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// FromShape converts a shapefile polygon record to a go-geom MultiPolygon.
// Shapefile ring convention: outer rings wind clockwise, holes
// counter-clockwise. Each clockwise part starts a new polygon; subsequent
// counter-clockwise parts become its holes.
func FromShape(shape shp.Shape) (geom.T, error) {
	p, ok := shape.(*shp.Polygon)
	if !ok {
		return nil, eris.Wrapf(ErrDegenerateGeometry, "unsupported shape type %T", shape)
	}
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil, eris.Wrap(ErrDegenerateGeometry, "empty polygon record")
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 3 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		if signedArea(flat) <= 0 || current == nil {
			// Clockwise ring (negative signed area): a new outer ring.
			// A leading counter-clockwise ring is treated as an outer
			// ring too; some writers do not respect the convention.
			if current != nil {
				if err := mp.Push(current); err != nil {
					return nil, eris.Wrap(ErrDegenerateGeometry, "malformed polygon part")
				}
			}
			// Output convention is GeoJSON's: exteriors wind
			// counter-clockwise, holes clockwise.
			if signedArea(flat) < 0 {
				reverseRing(flat)
			}
			current = geom.NewPolygon(geom.XY)
			if err := current.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
				return nil, eris.Wrap(ErrDegenerateGeometry, "malformed outer ring")
			}
			continue
		}

		if signedArea(flat) > 0 {
			reverseRing(flat)
		}
		if err := current.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			return nil, eris.Wrap(ErrDegenerateGeometry, "malformed hole ring")
		}
	}

	if current != nil {
		if err := mp.Push(current); err != nil {
			return nil, eris.Wrap(ErrDegenerateGeometry, "malformed polygon part")
		}
	}
	if mp.NumPolygons() == 0 {
		return nil, eris.Wrap(ErrDegenerateGeometry, "no usable rings")
	}
	return mp, nil
}

// reverseRing reverses the vertex order of a flat XY ring in place.
func reverseRing(flat []float64) {
	n := len(flat) / 2
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		flat[i*2], flat[j*2] = flat[j*2], flat[i*2]
		flat[i*2+1], flat[j*2+1] = flat[j*2+1], flat[i*2+1]
	}
}

// signedArea computes twice the signed area of a flat XY ring. Positive for
// counter-clockwise winding.
func signedArea(flat []float64) float64 {
	n := len(flat) / 2
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[i*2]*flat[j*2+1] - flat[j*2]*flat[i*2+1]
	}
	return sum
}
