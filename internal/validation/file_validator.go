// Package validation checks input and output locations before a run
// touches them, so misconfigured paths fail at startup.
package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrInvalidFile is wrapped by every file validation failure
var ErrInvalidFile = errors.New("invalid file")

// FileValidator provides file and directory validation
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateFile checks that path is an existing, readable, non-empty file
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist", slog.String("file", path))
		return fmt.Errorf("%w: %s does not exist", ErrInvalidFile, path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file", slog.String("path", path))
		return fmt.Errorf("%w: %s is a directory", ErrInvalidFile, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInvalidFile, path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %s is not readable: %v", ErrInvalidFile, path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateCSVFile checks a delimited sales export
func (v *FileValidator) ValidateCSVFile(path string) error {
	return v.validateWithExtension(path, ".csv", ".txt")
}

// ValidateExcelFile checks an Excel workbook. Lock files left by an open
// workbook ("~$ventas.xlsx") are rejected.
func (v *FileValidator) ValidateExcelFile(path string) error {
	if err := v.validateWithExtension(path, ".xlsx", ".xlsm"); err != nil {
		return err
	}
	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("Refusing temporary Excel file", slog.String("file", path))
		return fmt.Errorf("%w: %s is a temporary Excel file", ErrInvalidFile, path)
	}
	return nil
}

func (v *FileValidator) validateWithExtension(path string, exts ...string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(exts, ext) {
		v.logger.Error("Unexpected file extension",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("%w: %s has extension %q, want one of %s", ErrInvalidFile, path, ext, strings.Join(exts, ", "))
	}
	return nil
}

// ValidateOutputDirectory ensures dir exists, creating it if needed, and
// is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}
