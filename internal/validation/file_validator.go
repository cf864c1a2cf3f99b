package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/infrastructure"
)

// FileValidator checks the input workbook and the output directory before a
// run touches them
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	return &FileValidator{logger: infrastructure.LoggerOrDefault(logger)}
}

// ValidateOutputDirectory creates dir when needed and verifies it is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("cannot create output directory %s", dir), err)
	}

	probe, err := os.CreateTemp(dir, ".write_test-*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

// ValidateWorkbookFile checks that path is a readable .xlsx file and not an
// Office lock file
func (v *FileValidator) ValidateWorkbookFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		v.logger.Error("Workbook is not accessible",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewSourceUnavailableError("population workbook", err).WithContext("path", path)
	}
	if info.IsDir() {
		return apperrors.NewSourceUnavailableError("population workbook",
			fmt.Errorf("%s is a directory, not a file", path))
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" && ext != ".xlsm" {
		return apperrors.NewParsingError(fmt.Sprintf("%s is not an Excel workbook (extension %q)", path, ext), nil)
	}
	if strings.HasPrefix(filepath.Base(path), "~$") {
		return apperrors.NewParsingError(fmt.Sprintf("%s is an Excel lock file", path), nil)
	}

	v.logger.Debug("Workbook validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}
