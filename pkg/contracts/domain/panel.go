package domain

import (
	"encoding/json"
	"math"
	"sort"
)

// PanelRow is one (state, year) observation of the reconciled panel.
type PanelRow struct {
	Local string
	Year  Year

	// Ratio is population divided by active businesses, rounded to two
	// decimal places. A zero business count leaves +Inf or NaN here; see
	// IsSentinel.
	Ratio float64
}

// IsSentinel reports whether the ratio is the non-finite marker produced by
// a zero business count.
func (r PanelRow) IsSentinel() bool {
	return math.IsInf(r.Ratio, 0) || math.IsNaN(r.Ratio)
}

type panelRowJSON struct {
	Local    string   `json:"local"`
	Year     Year     `json:"year"`
	Ratio    *float64 `json:"ratio"`
	Sentinel string   `json:"sentinel,omitempty"`
}

// MarshalJSON encodes sentinel ratios as null with the sentinel spelled out,
// since JSON has no representation for Inf or NaN.
func (r PanelRow) MarshalJSON() ([]byte, error) {
	out := panelRowJSON{Local: r.Local, Year: r.Year}
	switch {
	case math.IsNaN(r.Ratio):
		out.Sentinel = "NaN"
	case math.IsInf(r.Ratio, 1):
		out.Sentinel = "+Inf"
	case math.IsInf(r.Ratio, -1):
		out.Sentinel = "-Inf"
	default:
		ratio := r.Ratio
		out.Ratio = &ratio
	}
	return json.Marshal(out)
}

// Panel is the reconciled state-year table. It is built once per run and is
// read-only afterwards: the rows are unexported and every accessor returns a
// copy, so adapters and HTTP handlers can share one instance.
type Panel struct {
	rows []PanelRow
}

// NewPanel builds a panel from rows, sorted by local then year. The input
// slice is copied.
func NewPanel(rows []PanelRow) *Panel {
	cp := make([]PanelRow, len(rows))
	copy(cp, rows)
	sort.SliceStable(cp, func(i, j int) bool {
		if cp[i].Local != cp[j].Local {
			return cp[i].Local < cp[j].Local
		}
		return cp[i].Year < cp[j].Year
	})
	return &Panel{rows: cp}
}

// Len returns the number of rows
func (p *Panel) Len() int {
	if p == nil {
		return 0
	}
	return len(p.rows)
}

// At returns the i-th row
func (p *Panel) At(i int) PanelRow {
	return p.rows[i]
}

// Rows returns a copy of all rows in (local, year) order
func (p *Panel) Rows() []PanelRow {
	if p == nil {
		return nil
	}
	cp := make([]PanelRow, len(p.rows))
	copy(cp, p.rows)
	return cp
}

// States returns the distinct locals in ascending order
func (p *Panel) States() []string {
	if p == nil {
		return nil
	}
	var states []string
	for i, r := range p.rows {
		if i == 0 || r.Local != p.rows[i-1].Local {
			states = append(states, r.Local)
		}
	}
	return states
}

// Years returns the distinct years in ascending order
func (p *Panel) Years() []Year {
	if p == nil {
		return nil
	}
	seen := make(map[Year]struct{})
	var years []Year
	for _, r := range p.rows {
		if _, ok := seen[r.Year]; ok {
			continue
		}
		seen[r.Year] = struct{}{}
		years = append(years, r.Year)
	}
	sort.Slice(years, func(i, j int) bool { return years[i] < years[j] })
	return years
}

// Series returns the rows of one state in year order
func (p *Panel) Series(state string) []PanelRow {
	if p == nil {
		return nil
	}
	var out []PanelRow
	for _, r := range p.rows {
		if r.Local == state {
			out = append(out, r)
		}
	}
	return out
}

// Filter returns a new panel holding the rows for which keep returns true
func (p *Panel) Filter(keep func(PanelRow) bool) *Panel {
	if p == nil {
		return NewPanel(nil)
	}
	out := make([]PanelRow, 0, len(p.rows))
	for _, r := range p.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return &Panel{rows: out}
}

// Finite returns the panel without sentinel rows
func (p *Panel) Finite() *Panel {
	return p.Filter(func(r PanelRow) bool { return !r.IsSentinel() })
}

// MarshalJSON encodes the panel as its row array
func (p *Panel) MarshalJSON() ([]byte, error) {
	rows := p.Rows()
	if rows == nil {
		rows = []PanelRow{}
	}
	return json.Marshal(rows)
}
