package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "sidrapanel/internal/errors"
	"sidrapanel/pkg/contracts/domain"
)

// Workbook sheet names
const (
	PanelSheet       = "panel"
	DiagnosticsSheet = "diagnostics"
)

var panelHeaders = []string{"local", "year", "ratio"}

// PanelExporter writes the reconciled panel and its diagnostics
type PanelExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
}

// NewPanelExporter creates an exporter rooted at baseDir
func NewPanelExporter(baseDir string, logger *slog.Logger) *PanelExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PanelExporter{
		csvWriter: NewCSVWriter(baseDir, logger),
		logger:    logger,
	}
}

// WritePanelCSV writes the panel with a local,year,ratio header
func (e *PanelExporter) WritePanelCSV(path string, panel *domain.Panel) error {
	return e.csvWriter.WriteSimpleCSV(path, panelHeaders, panelRecords(panel))
}

// EncodePanelCSV writes the panel as CSV to w without a BOM. Output is a pure
// function of the panel.
func EncodePanelCSV(w io.Writer, panel *domain.Panel) error {
	return writeRecords(w, panelHeaders, panelRecords(panel))
}

func panelRecords(panel *domain.Panel) [][]string {
	records := make([][]string, 0, panel.Len())
	for _, r := range panel.Rows() {
		records = append(records, []string{r.Local, formatYear(r.Year), formatRatio(r.Ratio)})
	}
	return records
}

// WritePanelWorkbook writes the panel and the diagnostics to one xlsx file
func (e *PanelExporter) WritePanelWorkbook(path string, panel *domain.Panel, diag domain.Diagnostics) error {
	fullPath := e.csvWriter.resolvePath(path)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PanelSheet); err != nil {
		return apperrors.NewStorageError("failed to name panel sheet", err)
	}
	if _, err := f.NewSheet(DiagnosticsSheet); err != nil {
		return apperrors.NewStorageError("failed to add diagnostics sheet", err)
	}

	if err := writePanelSheet(f, panel); err != nil {
		return apperrors.NewStorageError("failed to write panel sheet", err).WithContext("path", fullPath)
	}
	if err := writeDiagnosticsSheet(f, diag); err != nil {
		return apperrors.NewStorageError("failed to write diagnostics sheet", err).WithContext("path", fullPath)
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory", err).WithContext("path", fullPath)
	}
	if err := f.SaveAs(fullPath); err != nil {
		return apperrors.NewStorageError("failed to save workbook", err).WithContext("path", fullPath)
	}

	e.logger.Info("Panel workbook written",
		slog.String("full_path", fullPath),
		slog.Int("rows", panel.Len()))
	return nil
}

func writePanelSheet(f *excelize.File, panel *domain.Panel) error {
	if err := setRow(f, PanelSheet, 1, stringsToCells(panelHeaders)); err != nil {
		return err
	}
	for i, r := range panel.Rows() {
		if err := setRow(f, PanelSheet, i+2, []interface{}{r.Local, r.Year.Int(), ratioCell(r.Ratio)}); err != nil {
			return err
		}
	}
	return nil
}

// writeDiagnosticsSheet lays out the counters as key/value rows followed by
// the division sentinel table
func writeDiagnosticsSheet(f *excelize.File, d domain.Diagnostics) error {
	rows := [][]interface{}{
		{"metric", "value"},
		{"economic_rows", d.EconomicRows},
		{"population_rows", d.PopulationRows},
		{"joined_rows", d.JoinedRows},
		{"dropped_economic_rows", d.DroppedEconomicRows},
		{"dropped_population_rows", d.DroppedPopulationRows},
		{"only_in_economic", strings.Join(d.KeyMismatch.OnlyInEconomic, ", ")},
		{"only_in_population", strings.Join(d.KeyMismatch.OnlyInPopulation, ", ")},
		{},
		{"sentinel_local", "sentinel_year", "population"},
	}
	for _, s := range d.DivisionSentinels {
		rows = append(rows, []interface{}{s.Local, s.Year.Int(), s.Population})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if err := setRow(f, DiagnosticsSheet, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func stringsToCells(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// WriteDiagnosticsJSON writes the diagnostics as indented JSON
func (e *PanelExporter) WriteDiagnosticsJSON(path string, diag domain.Diagnostics) error {
	fullPath := e.csvWriter.resolvePath(path)

	data, err := json.MarshalIndent(diag, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("failed to encode diagnostics", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory", err).WithContext("path", fullPath)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to write %s", filepath.Base(fullPath)), err).
			WithContext("path", fullPath)
	}

	e.logger.Info("Diagnostics written", slog.String("full_path", fullPath))
	return nil
}
