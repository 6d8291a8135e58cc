package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

func clockwiseSquare(minX, minY, size float64) []shp.Point {
	return []shp.Point{
		{X: minX, Y: minY},
		{X: minX, Y: minY + size},
		{X: minX + size, Y: minY + size},
		{X: minX + size, Y: minY},
		{X: minX, Y: minY},
	}
}

func writeShapefile(t *testing.T, path string, fields []string, shapes [][]shp.Point, attrs [][]string) {
	t.Helper()

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	shpFields := make([]shp.Field, len(fields))
	for i, name := range fields {
		shpFields[i] = shp.StringField(name, 25)
	}
	require.NoError(t, w.SetFields(shpFields))

	for i, points := range shapes {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{points}))
		row := w.Write(&poly)
		for j, val := range attrs[i] {
			require.NoError(t, w.WriteAttribute(int(row), j, val))
		}
	}
	w.Close()

	// The writer drops the attribute file at "<base>dbf"; the reader opens
	// "<base>.dbf".
	base := strings.TrimSuffix(path, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
}

// fixtureCity builds the canonical three-unit scenario in dir and returns its
// descriptor. Unit A is covered by zones 1 and 2 (High), unit B by zone 9
// (Low), unit C by nothing.
func fixtureCity(t *testing.T, dir, name string) CityDescriptor {
	t.Helper()

	lczPath := filepath.Join(dir, name+"_lcz.shp")
	writeShapefile(t, lczPath,
		[]string{"LCZ"},
		[][]shp.Point{
			clockwiseSquare(1, 1, 3),
			clockwiseSquare(5, 5, 3),
			clockwiseSquare(11, 1, 3),
		},
		[][]string{{"1"}, {"2"}, {"9"}},
	)

	unitPath := filepath.Join(dir, name+"_units.shp")
	writeShapefile(t, unitPath,
		[]string{"CODE_IRIS", "NOM_IRIS", "NOM_COM"},
		[][]shp.Point{
			clockwiseSquare(0, 0, 10),
			clockwiseSquare(10, 0, 10),
			clockwiseSquare(20, 0, 10),
		},
		[][]string{
			{"A", "Quartier Nord", "Testville"},
			{"B", "Quartier Sud", "Testville"},
			{"C", "Quartier Est", "Testville"},
		},
	)

	csvPath := filepath.Join(dir, name+"_demo.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"IRIS,pop,c55,c80,pct\n"+
			"A,1000,10,4,20.0\n"+
			"B,2000,50,20,30.0\n"+
			"C,500,5,2,10.0\n",
	), 0o644))

	desc := CityDescriptor{
		Name: name,
		Classification: ShapeSource{
			Path:      lczPath,
			CodeField: "LCZ",
		},
		Boundaries: BoundarySource{
			Path:         unitPath,
			IDField:      "CODE_IRIS",
			NameField:    "NOM_IRIS",
			CommuneField: "NOM_COM",
		},
	}
	desc.Demographics.Path = csvPath
	desc.Demographics.Schema.Columns.UnitID = "IRIS"
	desc.Demographics.Schema.Columns.TotalPopulation = "pop"
	desc.Demographics.Schema.Columns.Count55PlusAlone = "c55"
	desc.Demographics.Schema.Columns.Count80PlusAlone = "c80"
	desc.Demographics.Schema.Columns.PctElderly = "pct"
	return desc
}
