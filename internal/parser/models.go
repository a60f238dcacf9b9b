package parser

import (
	"errors"
	"strings"
)

var (
	ErrNoData     = errors.New("parser: no numeric rows")
	ErrNoColumn   = errors.New("parser: required column missing")
	ErrFewColumns = errors.New("parser: too few columns")
)

// Table is a numeric delimited file. Cells that do not parse are NaN and
// are reported in ParseErrors.
type Table struct {
	Header      []string // empty when the file has none
	Rows        [][]float64
	ParseErrors []string // non-fatal issues found while reading
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		Header:      make([]string, 0),
		Rows:        make([][]float64, 0),
		ParseErrors: make([]string, 0),
	}
}

// Column returns the index of the first header matching one of names, case
// insensitive, or -1.
func (t *Table) Column(names ...string) int {
	for i, h := range t.Header {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(h), n) {
				return i
			}
		}
	}
	return -1
}

// IsothermData is a charge isotherm read from disk.
type IsothermData struct {
	Capacity    []float64 // mAh/g
	Potential   []float64 // V
	ParseErrors []string
}

// ExperimentData holds measured (C-rate, max SOC) pairs.
type ExperimentData struct {
	CRates      []float64
	SOCs        []float64
	ParseErrors []string
}

// Header aliases accepted for map files.
var (
	EllColumns = []string{"l", "ell", "logell", "log_ell"}
	XiColumns  = []string{"xi", "chi", "logxi", "log_xi"}
	SOCColumns = []string{"xmax", "soc", "socmax"}
)
