// Package pipeline drives the per-city processing stages and the multi-city
// batch run: load geometry, reduce zones onto units, join demographics, score,
// summarize, write outputs.
package pipeline

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/heatwatch-fr/heatrisk-cli/internal/census"
)

// ShapeSource points at the classification shapefile and the attribute column
// holding the zone code.
type ShapeSource struct {
	Path      string `yaml:"path"`
	CodeField string `yaml:"code_field"`
}

// BoundarySource points at the administrative-unit shapefile. Name and
// commune columns are optional display fields.
type BoundarySource struct {
	Path         string `yaml:"path"`
	IDField      string `yaml:"id_field"`
	NameField    string `yaml:"name_field"`
	CommuneField string `yaml:"commune_field"`
}

// TableSource points at the demographic table and embeds its read schema.
// Source tables differ per city (delimiter, encoding, column names), so the
// schema travels with the descriptor rather than the global config.
type TableSource struct {
	Path   string             `yaml:"path"`
	Schema census.TableSchema `yaml:",inline"`
}

// CityDescriptor names one city's three inputs and its output basename.
type CityDescriptor struct {
	Name           string         `yaml:"name"`
	Classification ShapeSource    `yaml:"classification"`
	Boundaries     BoundarySource `yaml:"boundaries"`
	Demographics   TableSource    `yaml:"demographics"`
	OutputBasename string         `yaml:"output_basename"`
}

// Basename returns the output file prefix: the configured basename, or the
// lowercased city name with spaces collapsed to underscores.
func (d CityDescriptor) Basename() string {
	if d.OutputBasename != "" {
		return d.OutputBasename
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(d.Name)), " ", "_")
}

// Validate checks the descriptor names every required input.
func (d CityDescriptor) Validate() error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return eris.New("descriptor has no city name")
	case d.Classification.Path == "":
		return eris.Errorf("city %s: no classification shapefile path", d.Name)
	case d.Classification.CodeField == "":
		return eris.Errorf("city %s: no classification code field", d.Name)
	case d.Boundaries.Path == "":
		return eris.Errorf("city %s: no boundary shapefile path", d.Name)
	case d.Boundaries.IDField == "":
		return eris.Errorf("city %s: no boundary id field", d.Name)
	case d.Demographics.Path == "":
		return eris.Errorf("city %s: no demographic table path", d.Name)
	}
	return nil
}

// descriptorFile is the on-disk shape of the city roster.
type descriptorFile struct {
	Cities []CityDescriptor `yaml:"cities"`
}

// LoadDescriptors reads and validates the city roster. Duplicate city names
// are rejected because outputs are keyed by basename.
func LoadDescriptors(path string) ([]CityDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read cities file %s", path)
	}

	var file descriptorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse cities file %s", path)
	}
	if len(file.Cities) == 0 {
		return nil, eris.Errorf("pipeline: cities file %s lists no cities", path)
	}

	seen := make(map[string]bool, len(file.Cities))
	for _, d := range file.Cities {
		if err := d.Validate(); err != nil {
			return nil, eris.Wrapf(err, "pipeline: cities file %s", path)
		}
		base := d.Basename()
		if seen[base] {
			return nil, eris.Errorf("pipeline: cities file %s: duplicate output basename %q", path, base)
		}
		seen[base] = true
	}
	return file.Cities, nil
}
