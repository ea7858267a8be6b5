package observation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/capuchin-go/internal/detector"
	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/logger"
)

// WriteFile writes report to path in format, creating the directory if needed.
func WriteFile(path, format, name string, report *detector.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(fmt.Errorf("failed to create output directory: %w", err)).
			Component("observation").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.New(err).
			Component("observation").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	if err := Write(file, format, name, report); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return writeError(err, format)
	}

	GetLogger().Debug("report written",
		logger.String("path", path),
		logger.String("format", format),
		logger.Int("calls", report.CallCount))
	return nil
}

// AppendScanLog appends the scan narrative of report to the log file at path,
// preceded by a timestamped header naming the recording.
func AppendScanLog(path, name string, report *detector.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(fmt.Errorf("failed to create log directory: %w", err)).
			Component("observation").
			Category(errors.CategoryFileIO).
			Build()
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.New(err).
			Component("observation").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer file.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "== %s %s\n", time.Now().Format(time.RFC3339), name)
	for _, line := range report.Log {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if _, err := file.WriteString(b.String()); err != nil {
		return writeError(err, "log")
	}
	return nil
}
