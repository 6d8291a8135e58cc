// Package gisload reads the two per-city shapefile inputs: climate-zone
// classification polygons and administrative unit boundaries.
package gisload

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/heatwatch-fr/heatrisk-cli/internal/geometry"
	"github.com/heatwatch-fr/heatrisk-cli/internal/lcz"
)

// ClassificationFeature is one climate-zone polygon with its LCZ code.
type ClassificationFeature struct {
	Code lcz.Code
	Geom geom.T
}

// UnitFeature is one administrative unit boundary with its identifier and
// optional display names.
type UnitFeature struct {
	ID      string
	Name    string
	Commune string
	Geom    geom.T
}

// ClassificationStats counts features excluded during classification load.
type ClassificationStats struct {
	Loaded       int
	SkippedCode  int // unknown classification code
	SkippedShape int // missing or unconvertible geometry
}

// LoadClassification reads classification polygons from a shapefile. Features
// with a code outside the LCZ alphabet or with unusable geometry are excluded
// and counted; they never abort the load.
func LoadClassification(path, codeField string) ([]ClassificationFeature, ClassificationStats, error) {
	var stats ClassificationStats

	reader, err := shp.Open(path)
	if err != nil {
		return nil, stats, eris.Wrapf(err, "gisload: open classification shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	codeIdx := fieldIndex(reader, codeField)
	if codeIdx < 0 {
		return nil, stats, eris.Errorf("gisload: classification code field %q not found in %s", codeField, path)
	}

	log := zap.L().With(zap.String("component", "gisload"), zap.String("path", path))

	var features []ClassificationFeature
	for reader.Next() {
		_, shape := reader.Shape()
		if shape == nil {
			stats.SkippedShape++
			continue
		}

		code := lcz.Code(attribute(reader, codeIdx))
		if _, err := lcz.CategoryOf(code); err != nil {
			stats.SkippedCode++
			log.Warn("excluding polygon with unmapped classification code",
				zap.String("code", string(code)),
				zap.Error(err),
			)
			continue
		}

		g, err := geometry.FromShape(shape)
		if err != nil {
			stats.SkippedShape++
			log.Warn("excluding polygon with unusable geometry", zap.Error(err))
			continue
		}

		features = append(features, ClassificationFeature{Code: code, Geom: g})
	}

	stats.Loaded = len(features)
	return features, stats, nil
}

// LoadUnits reads administrative unit boundaries from a shapefile. The ID
// field is required and must be unique; name and commune fields are optional
// ("" disables them). A unit without usable geometry fails the city load:
// geographic completeness drives everything downstream.
func LoadUnits(path, idField, nameField, communeField string) ([]UnitFeature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "gisload: open unit shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	idIdx := fieldIndex(reader, idField)
	if idIdx < 0 {
		return nil, eris.Errorf("gisload: unit identifier field %q not found in %s", idField, path)
	}
	nameIdx, communeIdx := -1, -1
	if nameField != "" {
		nameIdx = fieldIndex(reader, nameField)
	}
	if communeField != "" {
		communeIdx = fieldIndex(reader, communeField)
	}

	seen := make(map[string]bool)
	var units []UnitFeature
	for reader.Next() {
		_, shape := reader.Shape()

		id := attribute(reader, idIdx)
		if id == "" {
			return nil, eris.Errorf("gisload: unit with empty identifier in %s", path)
		}
		if seen[id] {
			return nil, eris.Errorf("gisload: duplicate unit identifier %q in %s", id, path)
		}
		seen[id] = true

		g, err := geometry.FromShape(shape)
		if err != nil {
			return nil, eris.Wrapf(err, "gisload: unit %s geometry", id)
		}

		u := UnitFeature{ID: id, Geom: g}
		if nameIdx >= 0 {
			u.Name = attribute(reader, nameIdx)
		}
		if communeIdx >= 0 {
			u.Commune = attribute(reader, communeIdx)
		}
		units = append(units, u)
	}

	if len(units) == 0 {
		return nil, eris.Errorf("gisload: no units found in %s", path)
	}
	return units, nil
}

// fieldIndex returns the index of a named field in the shapefile, or -1.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

// attribute reads one DBF cell. Fixed-width DBF strings come back NUL-padded,
// so the padding is stripped before any comparison or lookup.
func attribute(reader *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}
