// Package observation writes detection reports as a text table, CSV or JSON.
package observation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/tphakala/capuchin-go/internal/detector"
	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/logger"
)

// Output formats.
const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
)

// csvHeader matches the call table of the results page.
var csvHeader = []string{"Call #", "Start Time (s)", "End Time (s)", "Duration (s)", "Confidence"}

// GetLogger returns the observation package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("observation")
}

// IsFormat reports whether format names a supported output format.
func IsFormat(format string) bool {
	switch format {
	case FormatTable, FormatCSV, FormatJSON:
		return true
	}
	return false
}

// OutputPath returns the result file for input inside dir. CSV files follow
// the capuchin_calls_<name>.csv convention; table and JSON output keep the
// input base name with a .txt or .json extension.
func OutputPath(dir, input, format string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	switch format {
	case FormatCSV:
		return filepath.Join(dir, "capuchin_calls_"+name+".csv")
	case FormatJSON:
		return filepath.Join(dir, name+".json")
	default:
		return filepath.Join(dir, name+".txt")
	}
}

// Write encodes report in format to w. name identifies the recording.
func Write(w io.Writer, format, name string, report *detector.Report) error {
	switch format {
	case FormatTable, "":
		return WriteTable(w, name, report)
	case FormatCSV:
		return WriteCSV(w, report)
	case FormatJSON:
		return WriteJSON(w, name, report)
	default:
		return errors.Newf("unsupported output format %q", format).
			Component("observation").
			Category(errors.CategoryValidation).
			Build()
	}
}

// WriteTable writes the call count followed by one row per call.
func WriteTable(w io.Writer, name string, report *detector.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "File:\t%s\n", name)
	fmt.Fprintf(tw, "Duration:\t%.2f s\n", report.Duration)
	fmt.Fprintf(tw, "Capuchin calls:\t%d\n", report.CallCount)
	if report.Partial {
		fmt.Fprintf(tw, "Status:\tpartial, scan was cancelled\n")
	}

	if len(report.Events) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, strings.Join(csvHeader, "\t"))
		for i, e := range report.Events {
			fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.2f\t%s\n",
				i+1, e.StartTime, e.EndTime, e.Duration(), percent(e.Confidence))
		}
	}

	if err := tw.Flush(); err != nil {
		return writeError(err, FormatTable)
	}
	return nil
}

// WriteCSV writes one record per call with the results page columns.
func WriteCSV(w io.Writer, report *detector.Report) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return writeError(err, FormatCSV)
	}
	for i, e := range report.Events {
		record := []string{
			strconv.Itoa(i + 1),
			seconds(e.StartTime),
			seconds(e.EndTime),
			seconds(e.Duration()),
			percent(e.Confidence),
		}
		if err := cw.Write(record); err != nil {
			return writeError(err, FormatCSV)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return writeError(err, FormatCSV)
	}
	return nil
}

// jsonReport is the JSON document written per recording.
type jsonReport struct {
	File string `json:"file"`
	*detector.Report
}

// WriteJSON writes the full report, including stats and the scan narrative.
func WriteJSON(w io.Writer, name string, report *detector.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonReport{File: name, Report: report}); err != nil {
		return writeError(err, FormatJSON)
	}
	return nil
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func percent(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 2, 64) + "%"
}

func writeError(err error, format string) error {
	return errors.New(err).
		Component("observation").
		Category(errors.CategoryFileIO).
		Context("format", format).
		Build()
}
