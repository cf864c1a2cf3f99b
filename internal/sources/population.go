package sources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"sidrapanel/internal/config"
	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/infrastructure"
	"sidrapanel/internal/shared/textnorm"
	"sidrapanel/pkg/contracts/domain"
)

// Header labels of the projection workbook
const (
	ageHeader   = "IDADE"
	sexHeader   = "SEXO"
	localHeader = "LOCAL"
)

// PopulationLoader reads the IBGE population projection workbook
type PopulationLoader struct {
	path     string
	sheet    string
	skipRows int
	logger   *slog.Logger
}

// NewPopulationLoader creates a loader from the sources configuration
func NewPopulationLoader(cfg config.SourcesConfig, logger *slog.Logger) *PopulationLoader {
	return &PopulationLoader{
		path:     cfg.PopulationFile,
		sheet:    cfg.PopulationSheet,
		skipRows: cfg.SkipRows,
		logger:   infrastructure.WithComponent(logger, "population_loader"),
	}
}

// Load opens the workbook, skips the leading note rows and returns the table
// in wide form
func (l *PopulationLoader) Load(ctx context.Context) (domain.PopulationTable, error) {
	if err := ctx.Err(); err != nil {
		return domain.PopulationTable{}, err
	}

	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return domain.PopulationTable{}, apperrors.NewSourceUnavailableError("population workbook", err).
			WithContext("path", l.path).
			WithContext("missing", errors.Is(err, fs.ErrNotExist))
	}
	defer f.Close()

	sheet := l.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return domain.PopulationTable{}, apperrors.NewParsingError("population workbook has no sheets", nil)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return domain.PopulationTable{}, apperrors.NewParsingError(fmt.Sprintf("cannot read sheet %q", sheet), err).
			WithContext("path", l.path)
	}

	table, err := parsePopulationRows(rows, l.skipRows)
	if err != nil {
		return domain.PopulationTable{}, err
	}

	l.logger.InfoContext(ctx, "Population workbook loaded",
		slog.String("path", l.path),
		slog.String("sheet", sheet),
		slog.Int("records", len(table.Records)),
		slog.Any("year_columns", table.YearColumns))

	return table, nil
}

type populationLayout struct {
	age, sex, local int
	years           []int // column index per entry of YearColumns
}

func parsePopulationRows(rows [][]string, skipRows int) (domain.PopulationTable, error) {
	if len(rows) <= skipRows {
		return domain.PopulationTable{}, apperrors.NewParsingError(
			fmt.Sprintf("population sheet has %d rows, expected a header after %d skipped rows", len(rows), skipRows), nil)
	}

	table := domain.PopulationTable{}
	layout, err := locateColumns(rows[skipRows], &table)
	if err != nil {
		return domain.PopulationTable{}, err
	}

	for i, row := range rows[skipRows+1:] {
		if blankRow(row) {
			continue
		}
		sheetRow := skipRows + 2 + i

		ageLabel := strings.TrimSpace(cell(row, layout.age))
		rec := domain.RawPopulationRecord{
			Local:    cell(row, layout.local),
			Age:      parseAge(ageLabel),
			AgeLabel: ageLabel,
			Sex:      strings.TrimSpace(cell(row, layout.sex)),
			Values:   make(map[int]float64, len(layout.years)),
		}

		for j, col := range layout.years {
			raw := strings.TrimSpace(cell(row, col))
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return domain.PopulationTable{}, apperrors.NewTypeCoercionError("population", raw, err).
					WithContext("row", sheetRow).
					WithContext("year", table.YearColumns[j])
			}
			rec.Values[table.YearColumns[j]] = v
		}

		table.Records = append(table.Records, rec)
	}

	return table, nil
}

func locateColumns(header []string, table *domain.PopulationTable) (populationLayout, error) {
	layout := populationLayout{age: -1, sex: -1, local: -1}

	for i, h := range header {
		switch {
		case textnorm.EqualFold(h, ageHeader):
			layout.age = i
		case textnorm.EqualFold(h, sexHeader):
			layout.sex = i
		case textnorm.EqualFold(h, localHeader):
			layout.local = i
		default:
			if y, ok := headerYear(h); ok {
				table.YearColumns = append(table.YearColumns, y)
				layout.years = append(layout.years, i)
			}
		}
	}

	for name, idx := range map[string]int{ageHeader: layout.age, sexHeader: layout.sex, localHeader: layout.local} {
		if idx < 0 {
			return layout, apperrors.NewParsingError(fmt.Sprintf("population header has no %s column", name), nil).
				WithContext("header", header)
		}
	}
	return layout, nil
}

// headerYear accepts only plain four digit headers
func headerYear(h string) (int, bool) {
	h = strings.TrimSpace(h)
	if len(h) != 4 {
		return 0, false
	}
	y, err := domain.ParseYear(h)
	if err != nil {
		return 0, false
	}
	return y.Int(), true
}

// parseAge reads the leading integer of an age label ("90+" is 90). Labels
// without one, such as "Total", return -1.
func parseAge(label string) int {
	end := 0
	for end < len(label) && unicode.IsDigit(rune(label[end])) {
		end++
	}
	if end == 0 {
		return -1
	}
	n, err := strconv.Atoi(label[:end])
	if err != nil {
		return -1
	}
	return n
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
