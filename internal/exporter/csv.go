package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "sidrapanel/internal/errors"
)

// utf8BOM makes spreadsheet applications detect UTF-8, which matters for
// state names such as "Amapá"
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes CSV files under a base directory
type CSVWriter struct {
	baseDir string
	logger  *slog.Logger
}

// NewCSVWriter creates a writer rooted at baseDir. Relative paths passed to
// its methods are resolved against it.
func NewCSVWriter(baseDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{baseDir: baseDir, logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool
}

// WriteCSV writes headers and records to filePath, replacing any previous
// content. The file is written to a temporary sibling first and renamed, so a
// failed run never leaves a truncated CSV behind.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	w.logger.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory", err).WithContext("dir", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return apperrors.NewStorageError("failed to open file", err).WithContext("path", fullPath)
	}
	defer os.Remove(tmp.Name())

	if options.BOMPrefix {
		if _, err := tmp.Write(utf8BOM); err != nil {
			tmp.Close()
			return apperrors.NewStorageError("failed to write BOM", err).WithContext("path", fullPath)
		}
	}

	if err := writeRecords(tmp, options.Headers, options.Records); err != nil {
		tmp.Close()
		return apperrors.NewStorageError("failed to write CSV", err).WithContext("path", fullPath)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorageError("failed to close file", err).WithContext("path", fullPath)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return apperrors.NewStorageError("failed to move file into place", err).WithContext("path", fullPath)
	}
	return nil
}

// WriteSimpleCSV writes a CSV file with headers, records and a BOM
func (w *CSVWriter) WriteSimpleCSV(filePath string, headers []string, records [][]string) error {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   headers,
		Records:   records,
		BOMPrefix: true,
	})
}

func writeRecords(out io.Writer, headers []string, records [][]string) error {
	writer := csv.NewWriter(out)

	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// resolvePath keeps absolute paths and joins relative ones onto the base dir
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.baseDir == "" {
		return filePath
	}
	return filepath.Join(w.baseDir, filePath)
}
