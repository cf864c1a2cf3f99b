// Package exporter writes the reconciled panel to disk.
//
// CSVWriter is the low-level writer: it resolves relative paths against the
// output directory, prefixes a UTF-8 BOM for spreadsheet compatibility and
// replaces files atomically.
//
// PanelExporter builds on it to produce the three panel artifacts:
//
//	exp := exporter.NewPanelExporter("output", logger)
//	err := exp.WritePanelCSV("panel.csv", result.Panel)
//	err = exp.WritePanelWorkbook("panel.xlsx", result.Panel, result.Diagnostics)
//	err = exp.WriteDiagnosticsJSON("diagnostics.json", result.Diagnostics)
//
// Ratios are written with two decimal places. Division sentinels are written
// as the literal text +Inf, -Inf or NaN in both the CSV and the workbook.
package exporter
