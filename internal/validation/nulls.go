package validation

import (
	"context"
	"log/slog"

	"sidrapanel/internal/infrastructure"
)

// Table is the read-only view of a source table the null check needs
type Table interface {
	Columns() []string
	Len() int
	IsNull(row, col int) bool
}

// Report is the outcome of one null check
type Report struct {
	Label         string         `json:"label"`
	Rows          int            `json:"rows"`
	HasNulls      bool           `json:"has_nulls"`
	NullCells     int            `json:"null_cells"`
	NullsByColumn map[string]int `json:"nulls_by_column,omitempty"`
}

// Validator runs advisory null checks on the source tables. It never fails
// and never stops a run; its only effects are a log line and the Report.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a validator
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: infrastructure.WithComponent(logger, "validator")}
}

// Validate counts null cells in table and logs one line naming label
func (v *Validator) Validate(ctx context.Context, table Table, label string) Report {
	report := Report{Label: label}
	if table == nil {
		v.logger.InfoContext(ctx, label+" has no null values", slog.String("table", label), slog.Int("rows", 0))
		return report
	}

	cols := table.Columns()
	report.Rows = table.Len()

	for c, name := range cols {
		n := 0
		for r := 0; r < report.Rows; r++ {
			if table.IsNull(r, c) {
				n++
			}
		}
		if n > 0 {
			if report.NullsByColumn == nil {
				report.NullsByColumn = make(map[string]int)
			}
			report.NullsByColumn[name] = n
			report.NullCells += n
		}
	}
	report.HasNulls = report.NullCells > 0

	if report.HasNulls {
		v.logger.WarnContext(ctx, label+" contains null values",
			slog.String("table", label),
			slog.Int("rows", report.Rows),
			slog.Int("null_cells", report.NullCells),
			slog.Any("nulls_by_column", report.NullsByColumn))
	} else {
		v.logger.InfoContext(ctx, label+" has no null values",
			slog.String("table", label),
			slog.Int("rows", report.Rows))
	}
	return report
}
