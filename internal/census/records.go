// Package census loads per-unit demographic tables and joins them onto
// geographic units by exact identifier match.
package census

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Record holds the demographic counts for one administrative unit. All value
// fields are pointers: a nil field is missing, which is distinct from zero
// and excludes the unit from demographic-dependent aggregates.
type Record struct {
	UnitID           string
	TotalPopulation  *int
	Count55PlusAlone *int
	Count80PlusAlone *int
	PctElderly       *float64
}

// Complete reports whether all demographic fields are present.
func (r Record) Complete() bool {
	return r.TotalPopulation != nil && r.Count55PlusAlone != nil &&
		r.Count80PlusAlone != nil && r.PctElderly != nil
}

// ColumnMap names the source columns for each canonical field. Source tables
// are not schema-uniform across cities, so every city descriptor carries its
// own mapping.
type ColumnMap struct {
	UnitID           string `yaml:"unit_id"`
	TotalPopulation  string `yaml:"total_population"`
	Count55PlusAlone string `yaml:"count_55_plus_alone"`
	Count80PlusAlone string `yaml:"count_80_plus_alone"`
	PctElderly       string `yaml:"pct_elderly"`
}

// TableSchema describes how to read one city's demographic table.
type TableSchema struct {
	Columns   ColumnMap `yaml:"columns"`
	Delimiter string    `yaml:"delimiter"` // CSV only; default ","; INSEE exports use ";"
	Encoding  string    `yaml:"encoding"`  // "utf-8" (default) or "latin-1"
	Sheet     string    `yaml:"sheet"`     // XLSX only; default first sheet
}

// rawRecord is the canonical-header row shape csvutil decodes into. Values
// stay strings so numeric parsing can handle French decimal commas and blank
// cells uniformly.
type rawRecord struct {
	UnitID           string `csv:"unit_id"`
	TotalPopulation  string `csv:"total_population"`
	Count55PlusAlone string `csv:"count_55_plus_alone"`
	Count80PlusAlone string `csv:"count_80_plus_alone"`
	PctElderly       string `csv:"pct_elderly"`
}

// LoadTable reads a demographic table, dispatching on the file extension
// (.csv or .xlsx).
func LoadTable(path string, schema TableSchema) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path, schema)
	case ".xlsx":
		return loadXLSX(path, schema)
	default:
		return nil, eris.Errorf("census: unsupported table format %q", filepath.Ext(path))
	}
}

func loadCSV(path string, schema TableSchema) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "census: open table %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	switch strings.ToLower(schema.Encoding) {
	case "", "utf-8", "utf8":
	case "latin-1", "latin1", "iso-8859-1":
		r = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	case "windows-1252", "cp1252":
		r = transform.NewReader(f, charmap.Windows1252.NewDecoder())
	default:
		return nil, eris.Errorf("census: unsupported encoding %q", schema.Encoding)
	}

	cr := csv.NewReader(r)
	if schema.Delimiter != "" {
		cr.Comma = rune(schema.Delimiter[0])
	}
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "census: read header of %s", path)
	}

	canonical, err := canonicalHeader(header, schema.Columns)
	if err != nil {
		return nil, eris.Wrapf(err, "census: table %s", path)
	}

	dec, err := csvutil.NewDecoder(cr, canonical...)
	if err != nil {
		return nil, eris.Wrap(err, "census: create decoder")
	}

	var records []Record
	for {
		var raw rawRecord
		if err := dec.Decode(&raw); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "census: decode row in %s", path)
		}
		rec, err := parseRecord(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "census: row in %s", path)
		}
		records = append(records, rec)
	}
	return records, nil
}

func loadXLSX(path string, schema TableSchema) ([]Record, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "census: open table %s", path)
	}

	var sheet *xlsx.Sheet
	if schema.Sheet != "" {
		var ok bool
		sheet, ok = f.Sheet[schema.Sheet]
		if !ok {
			return nil, eris.Errorf("census: sheet %q not found in %s", schema.Sheet, path)
		}
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.Errorf("census: no sheets in %s", path)
		}
		sheet = f.Sheets[0]
	}

	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("census: empty sheet in %s", path)
	}

	header := rowStrings(sheet.Rows[0])
	canonical, err := canonicalHeader(header, schema.Columns)
	if err != nil {
		return nil, eris.Wrapf(err, "census: table %s", path)
	}

	idx := make(map[string]int, len(canonical))
	for i, name := range canonical {
		if name != "" {
			idx[name] = i
		}
	}

	var records []Record
	for _, row := range sheet.Rows[1:] {
		cells := rowStrings(row)
		get := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(cells) {
				return ""
			}
			return cells[i]
		}
		raw := rawRecord{
			UnitID:           get("unit_id"),
			TotalPopulation:  get("total_population"),
			Count55PlusAlone: get("count_55_plus_alone"),
			Count80PlusAlone: get("count_80_plus_alone"),
			PctElderly:       get("pct_elderly"),
		}
		if raw.UnitID == "" {
			continue // trailing blank rows are common in XLSX exports
		}
		rec, err := parseRecord(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "census: row in %s", path)
		}
		records = append(records, rec)
	}
	return records, nil
}

// canonicalHeader maps the source header to canonical column names; columns
// not named in the mapping come back as "" and are ignored by the decoder.
func canonicalHeader(header []string, cols ColumnMap) ([]string, error) {
	if cols.UnitID == "" {
		return nil, eris.New("column mapping has no unit_id column")
	}

	byCanonical := map[string]string{
		"unit_id":             cols.UnitID,
		"total_population":    cols.TotalPopulation,
		"count_55_plus_alone": cols.Count55PlusAlone,
		"count_80_plus_alone": cols.Count80PlusAlone,
		"pct_elderly":         cols.PctElderly,
	}

	canonical := make([]string, len(header))
	found := make(map[string]bool)
	for i, h := range header {
		h = strings.TrimSpace(h)
		for canon, src := range byCanonical {
			if src != "" && strings.EqualFold(h, src) {
				canonical[i] = canon
				found[canon] = true
				break
			}
		}
	}

	if !found["unit_id"] {
		return nil, eris.Errorf("identifier column %q not found in header", cols.UnitID)
	}
	return canonical, nil
}

func parseRecord(raw rawRecord) (Record, error) {
	id := strings.TrimSpace(raw.UnitID)
	if id == "" {
		return Record{}, eris.New("row with empty unit identifier")
	}

	rec := Record{UnitID: id}
	var err error
	if rec.TotalPopulation, err = parseCount(raw.TotalPopulation); err != nil {
		return Record{}, eris.Wrapf(err, "unit %s total population", id)
	}
	if rec.Count55PlusAlone, err = parseCount(raw.Count55PlusAlone); err != nil {
		return Record{}, eris.Wrapf(err, "unit %s count 55+ alone", id)
	}
	if rec.Count80PlusAlone, err = parseCount(raw.Count80PlusAlone); err != nil {
		return Record{}, eris.Wrapf(err, "unit %s count 80+ alone", id)
	}
	if rec.PctElderly, err = parsePercent(raw.PctElderly); err != nil {
		return Record{}, eris.Wrapf(err, "unit %s pct elderly", id)
	}
	return rec, nil
}

// parseCount parses a non-negative count. Source tables carry survey-weighted
// counts with decimals; those round to the nearest integer. Blank means
// missing, never zero.
func parseCount(s string) (*int, error) {
	v, err := parseNumber(s)
	if err != nil || v == nil {
		return nil, err
	}
	if *v < 0 {
		return nil, eris.Errorf("negative count %v", *v)
	}
	n := int(math.Round(*v))
	return &n, nil
}

func parsePercent(s string) (*float64, error) {
	v, err := parseNumber(s)
	if err != nil || v == nil {
		return nil, err
	}
	if *v < 0 || *v > 100 {
		return nil, eris.Errorf("percentage %v out of range", *v)
	}
	return v, nil
}

func parseNumber(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	// French exports use a decimal comma.
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, eris.Errorf("non-finite number %q", s)
	}
	return &v, nil
}

func rowStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = strings.TrimSpace(cell.String())
	}
	return out
}
