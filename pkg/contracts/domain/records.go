package domain

import "strings"

// RawEconomicRecord is one row of the SIDRA economic census table after the
// header row has been promoted to column labels.
//
// Year and ActiveBusinessCount are kept exactly as received from the API.
// They are coerced to Year and int64 by the reconciliation engine, which is
// the only place a malformed value can fail the run.
type RawEconomicRecord struct {
	FederativeUnit      string `json:"federative_unit"`
	Year                string `json:"year"`
	ActiveBusinessCount string `json:"active_business_count"`
}

// EconomicTable is the raw economic source as a sequence of records.
type EconomicTable []RawEconomicRecord

// Economic table column names in declaration order.
var economicColumns = []string{"federative_unit", "year", "active_business_count"}

// Columns returns the column names of the table
func (t EconomicTable) Columns() []string {
	cols := make([]string, len(economicColumns))
	copy(cols, economicColumns)
	return cols
}

// Len returns the number of records
func (t EconomicTable) Len() int {
	return len(t)
}

// IsNull reports whether the cell at (row, col) is absent. A blank string
// counts as absent because the API encodes missing cells that way.
func (t EconomicTable) IsNull(row, col int) bool {
	if row < 0 || row >= len(t) {
		return true
	}
	r := t[row]
	switch col {
	case 0:
		return strings.TrimSpace(r.FederativeUnit) == ""
	case 1:
		return strings.TrimSpace(r.Year) == ""
	case 2:
		return strings.TrimSpace(r.ActiveBusinessCount) == ""
	default:
		return true
	}
}

// RawPopulationRecord is one row of the population projection spreadsheet:
// a (local, age, sex) combination with one value per year column.
type RawPopulationRecord struct {
	Local string `json:"local"`

	// Age is the parsed single age. Labels such as "90+" parse to their
	// leading number; an unparseable label yields -1, which no age filter
	// accepts.
	Age int `json:"age"`

	// AgeLabel is the age cell as read from the sheet.
	AgeLabel string `json:"age_label"`

	Sex string `json:"sex"`

	// Values holds one population value per year column. A year whose cell
	// was empty is absent from the map.
	Values map[int]float64 `json:"values"`
}

// PopulationTable is the raw population source in wide form.
type PopulationTable struct {
	// YearColumns lists the year columns found in the sheet header, in sheet
	// order.
	YearColumns []int                 `json:"year_columns"`
	Records     []RawPopulationRecord `json:"records"`
}

// Columns returns local, age, sex followed by one column per year
func (t PopulationTable) Columns() []string {
	cols := make([]string, 0, 3+len(t.YearColumns))
	cols = append(cols, "local", "age", "sex")
	for _, y := range t.YearColumns {
		cols = append(cols, Year(y).String())
	}
	return cols
}

// Len returns the number of records
func (t PopulationTable) Len() int {
	return len(t.Records)
}

// IsNull reports whether the cell at (row, col) is absent
func (t PopulationTable) IsNull(row, col int) bool {
	if row < 0 || row >= len(t.Records) {
		return true
	}
	r := t.Records[row]
	switch {
	case col < 0:
		return true
	case col == 0:
		return strings.TrimSpace(r.Local) == ""
	case col == 1:
		return strings.TrimSpace(r.AgeLabel) == ""
	case col == 2:
		return strings.TrimSpace(r.Sex) == ""
	case col-3 < len(t.YearColumns):
		_, ok := r.Values[t.YearColumns[col-3]]
		return !ok
	default:
		return true
	}
}

// PopulationPoint is one (local, year) entry of the aggregated population in
// long form.
type PopulationPoint struct {
	Local      string  `json:"local"`
	Year       Year    `json:"year"`
	Population float64 `json:"population"`
}
