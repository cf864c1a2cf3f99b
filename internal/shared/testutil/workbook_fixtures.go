package testutil

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/xuri/excelize/v2"
)

// PopulationRow is one data row of a projection workbook fixture
type PopulationRow struct {
	Age    string
	Sex    string
	Local  string
	Values map[int]float64
}

// PopulationWorkbook describes a projection workbook laid out like the IBGE
// release: SkipRows lines of titles and notes, a header row, then data.
type PopulationWorkbook struct {
	Sheet    string
	SkipRows int
	Years    []int
	Rows     []PopulationRow
}

// WritePopulationWorkbook saves the fixture under dir and returns its path
func WritePopulationWorkbook(t *testing.T, dir string, wb PopulationWorkbook) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := wb.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	} else {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("rename sheet: %v", err)
		}
	}

	years := append([]int(nil), wb.Years...)
	sort.Ints(years)

	row := 1
	for i := 0; i < wb.SkipRows; i++ {
		setRow(t, f, sheet, row, []interface{}{"PROJEÇÕES DA POPULAÇÃO - nota"})
		row++
	}

	header := []interface{}{"IDADE", "SEXO", "CÓD.", "SIGLA", "LOCAL"}
	for _, y := range years {
		header = append(header, y)
	}
	setRow(t, f, sheet, row, header)
	row++

	for _, r := range wb.Rows {
		values := []interface{}{r.Age, r.Sex, 0, "", r.Local}
		for _, y := range years {
			if v, ok := r.Values[y]; ok {
				values = append(values, v)
			} else {
				values = append(values, nil)
			}
		}
		setRow(t, f, sheet, row, values)
		row++
	}

	path := filepath.Join(dir, "projecoes.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func setRow(t *testing.T, f *excelize.File, sheet string, row int, values []interface{}) {
	t.Helper()
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		t.Fatalf("cell name: %v", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		t.Fatalf("set row %d: %v", row, err)
	}
}
