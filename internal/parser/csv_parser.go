package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/fernandezfran/galpynostatic/internal/diagram"
	"github.com/fernandezfran/galpynostatic/internal/profile"
)

// sniffDelimiter looks at the first non-comment line. Zero means runs of
// blanks separate the fields.
func sniffDelimiter(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, d := range []rune{'\t', ',', ';'} {
			if strings.ContainsRune(line, d) {
				return d
			}
		}
		return 0
	}
	return ','
}

func splitRecords(data []byte, delim rune) ([][]string, error) {
	if delim == 0 {
		var records [][]string
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			records = append(records, strings.Fields(line))
		}
		return records, sc.Err()
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	reader.Comment = '#'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

// ReadTable reads a numeric table separated by tabs, commas, semicolons or
// blanks. A first row with no numeric cell is taken as the header.
func ReadTable(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	records, err := splitRecords(data, sniffDelimiter(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}

	table := NewTable()
	width := 0
	for rowIdx, record := range records {
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		if rowIdx == 0 && isHeader(record) {
			for _, h := range record {
				table.Header = append(table.Header, strings.TrimSpace(h))
			}
			width = len(record)
			continue
		}
		if width == 0 {
			width = len(record)
		}

		row := make([]float64, width)
		for i := range row {
			row[i] = math.NaN()
		}
		for i, cell := range record {
			if i >= width {
				table.ParseErrors = append(table.ParseErrors, fmt.Sprintf("Warning: row %d has %d fields, expected %d. Extra fields ignored.", rowIdx+1, len(record), width))
				break
			}
			val, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				table.ParseErrors = append(table.ParseErrors, fmt.Sprintf("Error converting value '%s' in row %d, column %d. Using NaN.", cell, rowIdx+1, i+1))
				continue
			}
			row[i] = val
		}
		if len(record) < width {
			table.ParseErrors = append(table.ParseErrors, fmt.Sprintf("Warning: row %d has %d fields, expected %d. Missing fields set to NaN.", rowIdx+1, len(record), width))
		}
		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		return table, ErrNoData
	}
	return table, nil
}

func isHeader(record []string) bool {
	for _, cell := range record {
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
			return false
		}
	}
	return true
}

// ReadTableFile opens path and reads it with ReadTable.
func ReadTableFile(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	table, err := ReadTable(file)
	if err != nil {
		return table, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// pairs extracts two columns, dropping rows where either is NaN.
func pairs(table *Table, xi, yi int, what string) ([]float64, []float64, []string) {
	warnings := append([]string(nil), table.ParseErrors...)
	var xs, ys []float64
	for rowIdx, row := range table.Rows {
		if xi >= len(row) || yi >= len(row) || math.IsNaN(row[xi]) || math.IsNaN(row[yi]) {
			warnings = append(warnings, fmt.Sprintf("Warning: %s row %d skipped, missing value.", what, rowIdx+1))
			continue
		}
		xs = append(xs, row[xi])
		ys = append(ys, row[yi])
	}
	return xs, ys, warnings
}

// ReadIsotherm reads (capacity, potential) from the first two columns, or
// from columns named capacity and potential/voltage.
func ReadIsotherm(path string) (*IsothermData, error) {
	table, err := ReadTableFile(path)
	if err != nil {
		return nil, err
	}
	ci, pi := 0, 1
	if len(table.Header) > 0 {
		if c := table.Column("capacity"); c >= 0 {
			ci = c
		}
		if p := table.Column("potential", "voltage", "e"); p >= 0 {
			pi = p
		}
	}
	if len(table.Rows[0]) < 2 {
		return nil, fmt.Errorf("%w: isotherm %s needs two", ErrFewColumns, path)
	}

	capacity, potential, warnings := pairs(table, ci, pi, "isotherm")
	if len(capacity) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoData)
	}
	return &IsothermData{Capacity: capacity, Potential: potential, ParseErrors: warnings}, nil
}

// ReadExperiment reads (C-rate, SOC) pairs from the first two columns.
func ReadExperiment(path string) (*ExperimentData, error) {
	table, err := ReadTableFile(path)
	if err != nil {
		return nil, err
	}
	ri, si := 0, 1
	if len(table.Header) > 0 {
		if c := table.Column("c_rate", "crate", "c-rate", "rate"); c >= 0 {
			ri = c
		}
		if c := table.Column(SOCColumns...); c >= 0 {
			si = c
		}
	}
	if len(table.Rows[0]) < 2 {
		return nil, fmt.Errorf("%w: experiment %s needs two", ErrFewColumns, path)
	}

	rates, socs, warnings := pairs(table, ri, si, "experiment")
	if len(rates) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoData)
	}
	return &ExperimentData{CRates: rates, SOCs: socs, ParseErrors: warnings}, nil
}

// ReadMap reads a diagnostic map with l, xi and xmax columns. Headerless
// files are taken in that order.
func ReadMap(path string) (*diagram.Map, []string, error) {
	table, err := ReadTableFile(path)
	if err != nil {
		return nil, nil, err
	}
	li, xi, si := 0, 1, 2
	if len(table.Header) > 0 {
		li, xi, si = table.Column(EllColumns...), table.Column(XiColumns...), table.Column(SOCColumns...)
		if li < 0 || xi < 0 || si < 0 {
			return nil, nil, fmt.Errorf("%w: map %s has header %v", ErrNoColumn, path, table.Header)
		}
	} else if len(table.Rows[0]) < 3 {
		return nil, nil, fmt.Errorf("%w: map %s needs three", ErrFewColumns, path)
	}

	warnings := append([]string(nil), table.ParseErrors...)
	m := &diagram.Map{Points: make([]diagram.Point, 0, len(table.Rows))}
	for rowIdx, row := range table.Rows {
		pt := diagram.Point{LogEll: row[li], LogXi: row[xi], SOC: row[si]}
		if math.IsNaN(pt.LogEll) || math.IsNaN(pt.LogXi) || math.IsNaN(pt.SOC) {
			warnings = append(warnings, fmt.Sprintf("Warning: map row %d skipped, missing value.", rowIdx+1))
			continue
		}
		m.Points = append(m.Points, pt)
	}
	if m.Len() == 0 {
		return nil, warnings, fmt.Errorf("%s: %w", path, ErrNoData)
	}
	return m, warnings, nil
}

func writeRecords(path string, header []string, rows [][]float64, comma rune) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = comma
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, v := range row {
			record[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// WriteMap writes m as a tab separated l, xi, xmax table sorted by log ell,
// then log Xi. m itself is not reordered.
func WriteMap(path string, m *diagram.Map) error {
	sorted := diagram.NewMap(m.Points)
	sorted.Sort()
	rows := make([][]float64, sorted.Len())
	for i, pt := range sorted.Points {
		rows[i] = []float64{pt.LogEll, pt.LogXi, pt.SOC}
	}
	return writeRecords(path, []string{"l", "xi", "xmax"}, rows, '\t')
}

// WriteProfile writes the charge curve to profilePath as SOC, Potential
// and, when concentrationPath is not empty and the run took a snapshot,
// the concentration as r_norm, theta.
func WriteProfile(profilePath, concentrationPath string, res *profile.Result) error {
	rows := make([][]float64, res.Len())
	for i := range rows {
		rows[i] = []float64{res.SOC[i], res.Potential[i]}
	}
	if err := writeRecords(profilePath, []string{"SOC", "Potential"}, rows, ','); err != nil {
		return err
	}
	if concentrationPath == "" || !res.Snapshot {
		return nil
	}

	rows = make([][]float64, len(res.Radius))
	for i := range rows {
		rows[i] = []float64{res.Radius[i], res.Concentration[i]}
	}
	return writeRecords(concentrationPath, []string{"r_norm", "theta"}, rows, ',')
}
