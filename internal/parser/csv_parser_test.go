package parser

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/fernandezfran/galpynostatic/internal/diagram"
	"github.com/fernandezfran/galpynostatic/internal/profile"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadTableDelimiters(t *testing.T) {
	for _, tt := range []struct {
		name, data string
	}{
		{"comma", "1.5,2\n3,4e-1\n"},
		{"tab", "1.5\t2\n3\t4e-1\n"},
		{"semicolon", "1.5;2\n3;4e-1\n"},
		{"blanks", "1.5   2\n 3 4e-1\n"},
		{"comment", "# generated\n1.5, 2\n3, 4e-1\n"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadTable(strings.NewReader(tt.data))
			if err != nil {
				t.Fatalf("ReadTable: %v", err)
			}
			if len(table.Header) != 0 {
				t.Errorf("header = %v, want none", table.Header)
			}
			if len(table.Rows) != 2 || !floats.Equal(table.Rows[0], []float64{1.5, 2}) || !floats.Equal(table.Rows[1], []float64{3, 0.4}) {
				t.Errorf("rows = %v", table.Rows)
			}
		})
	}
}

func TestReadTableBadCells(t *testing.T) {
	table, err := ReadTable(strings.NewReader("a,b,c\n1,x,3\n4,5\n"))
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if got := table.Column("B"); got != 1 {
		t.Errorf("Column(B) = %d, want 1", got)
	}
	if !math.IsNaN(table.Rows[0][1]) || !math.IsNaN(table.Rows[1][2]) {
		t.Errorf("rows = %v, want NaN for the bad and missing cells", table.Rows)
	}
	if len(table.ParseErrors) != 2 {
		t.Errorf("ParseErrors = %q, want 2 entries", table.ParseErrors)
	}

	if _, err := ReadTable(strings.NewReader("only,a,header\n")); !errors.Is(err, ErrNoData) {
		t.Errorf("header only: err = %v, want ErrNoData", err)
	}
}

func TestReadIsotherm(t *testing.T) {
	path := writeFile(t, "LMO-1C.csv", "5,0.25\n20,0.12\nbad,0.1\n40,0.06\n")
	iso, err := ReadIsotherm(path)
	if err != nil {
		t.Fatalf("ReadIsotherm: %v", err)
	}
	if !floats.Equal(iso.Capacity, []float64{5, 20, 40}) || !floats.Equal(iso.Potential, []float64{0.25, 0.12, 0.06}) {
		t.Errorf("isotherm = %v / %v", iso.Capacity, iso.Potential)
	}
	if len(iso.ParseErrors) != 2 {
		t.Errorf("ParseErrors = %q", iso.ParseErrors)
	}

	named := writeFile(t, "iso.csv", "potential,capacity\n0.3,1\n0.2,2\n")
	iso, err = ReadIsotherm(named)
	if err != nil {
		t.Fatalf("ReadIsotherm with header: %v", err)
	}
	if !floats.Equal(iso.Capacity, []float64{1, 2}) {
		t.Errorf("capacity = %v, want the named column", iso.Capacity)
	}

	if _, err := ReadIsotherm(writeFile(t, "one.csv", "1\n2\n")); !errors.Is(err, ErrFewColumns) {
		t.Errorf("one column: err = %v, want ErrFewColumns", err)
	}
}

func TestReadExperiment(t *testing.T) {
	path := writeFile(t, "LMO.dat", "0.5 0.99\n1 0.98\n5 0.91\n20 0.62\n")
	exp, err := ReadExperiment(path)
	if err != nil {
		t.Fatalf("ReadExperiment: %v", err)
	}
	if !floats.Equal(exp.CRates, []float64{0.5, 1, 5, 20}) || !floats.Equal(exp.SOCs, []float64{0.99, 0.98, 0.91, 0.62}) {
		t.Errorf("experiment = %v / %v", exp.CRates, exp.SOCs)
	}
}

func TestMapRoundTrip(t *testing.T) {
	m := diagram.NewMap([]diagram.Point{
		{LogEll: 1, LogXi: 0, SOC: 0.1},
		{LogEll: 0, LogXi: 1, SOC: 0.9},
		{LogEll: 0, LogXi: 0, SOC: 0.5},
		{LogEll: 1, LogXi: 1, SOC: 1.0 / 3},
	})
	path := filepath.Join(t.TempDir(), "map.tsv")
	if err := WriteMap(path, m); err != nil {
		t.Fatalf("WriteMap: %v", err)
	}
	if m.Points[0].LogEll != 1 {
		t.Error("WriteMap reordered its argument")
	}

	got, warnings, err := ReadMap(path)
	if err != nil {
		t.Fatalf("ReadMap: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %q", warnings)
	}
	want := diagram.NewMap(m.Points)
	want.Sort()
	if got.Len() != want.Len() {
		t.Fatalf("points = %d, want %d", got.Len(), want.Len())
	}
	for i := range want.Points {
		if got.Points[i] != want.Points[i] {
			t.Errorf("point %d = %+v, want %+v", i, got.Points[i], want.Points[i])
		}
	}
}

func TestReadMapHeaders(t *testing.T) {
	path := writeFile(t, "sphere.tsv", "xmax\tchi\tell\n0.5\t-1\t-2\n0.7\t0\t-2\n")
	m, _, err := ReadMap(path)
	if err != nil {
		t.Fatalf("ReadMap: %v", err)
	}
	if m.Points[1] != (diagram.Point{LogEll: -2, LogXi: 0, SOC: 0.7}) {
		t.Errorf("point = %+v", m.Points[1])
	}

	if _, _, err := ReadMap(writeFile(t, "bad.tsv", "a\tb\tc\n1\t2\t3\n")); !errors.Is(err, ErrNoColumn) {
		t.Errorf("unknown header: err = %v, want ErrNoColumn", err)
	}
}

func TestWriteProfile(t *testing.T) {
	dir := t.TempDir()
	res := &profile.Result{
		SOC:           []float64{0.1, 0.5},
		Potential:     []float64{0.05, -0.15},
		Radius:        []float64{0, 0.5, 1},
		Concentration: []float64{0.4, 0.5, 0.6},
		Snapshot:      true,
	}
	curve, con := filepath.Join(dir, "profile.csv"), filepath.Join(dir, "con.csv")
	if err := WriteProfile(curve, con, res); err != nil {
		t.Fatalf("WriteProfile: %v", err)
	}

	data, err := os.ReadFile(curve)
	if err != nil {
		t.Fatal(err)
	}
	if want := "SOC,Potential\n0.1,0.05\n0.5,-0.15\n"; string(data) != want {
		t.Errorf("profile file = %q, want %q", data, want)
	}

	table, err := ReadTableFile(con)
	if err != nil {
		t.Fatalf("reading concentration: %v", err)
	}
	if table.Column("theta") != 1 || len(table.Rows) != 3 || table.Rows[2][1] != 0.6 {
		t.Errorf("concentration table = %+v", table)
	}
}
