package observation

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/capuchin-go/internal/detector"
	"github.com/tphakala/capuchin-go/internal/errors"
)

func testReport(t *testing.T) *detector.Report {
	t.Helper()
	report, err := detector.NewReport(2, []detector.Event{
		{StartTime: 12, EndTime: 14, MidTime: 13, Confidence: 0.8123},
		{StartTime: 0, EndTime: 6, MidTime: 3, Confidence: 0.9},
	}, []string{"Outer window: start 0.00s, end 6.00s, duration 6.00s"})
	require.NoError(t, err)
	report.Duration = 14
	return report
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testReport(t)))

	want := "Call #,Start Time (s),End Time (s),Duration (s),Confidence\n" +
		"1,0.00,6.00,6.00,90.00%\n" +
		"2,12.00,14.00,2.00,81.23%\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSVNoCalls(t *testing.T) {
	t.Parallel()

	report, err := detector.NewReport(0, nil, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, report))
	assert.Equal(t, "Call #,Start Time (s),End Time (s),Duration (s),Confidence\n", buf.String())
}

func TestWriteTable(t *testing.T) {
	t.Parallel()

	report := testReport(t)
	report.Partial = true

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, "forest.wav", report))

	out := buf.String()
	assert.Contains(t, out, "forest.wav")
	assert.Contains(t, out, "14.00 s")
	assert.Regexp(t, `Capuchin calls:\s+2`, out)
	assert.Contains(t, out, "partial")
	assert.Regexp(t, `1\s+0\.00\s+6\.00\s+6\.00\s+90\.00%`, out)
	assert.Regexp(t, `2\s+12\.00\s+14\.00\s+2\.00\s+81\.23%`, out)
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, "forest.wav", testReport(t)))

	var decoded struct {
		File      string           `json:"file"`
		CallCount int              `json:"call_count"`
		Events    []detector.Event `json:"events"`
		Log       []string         `json:"log"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "forest.wav", decoded.File)
	assert.Equal(t, 2, decoded.CallCount)
	require.Len(t, decoded.Events, 2)
	assert.InDelta(t, 12.0, decoded.Events[1].StartTime, 0)
	assert.Len(t, decoded.Log, 1)
}

func TestWriteUnsupportedFormat(t *testing.T) {
	t.Parallel()

	err := Write(&bytes.Buffer{}, "xml", "a.wav", testReport(t))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.False(t, IsFormat("xml"))
	assert.True(t, IsFormat(FormatJSON))
}

func TestOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input, format, want string
	}{
		{"/data/forest.wav", FormatCSV, "out/capuchin_calls_forest.csv"},
		{"/data/forest.flac", FormatTable, "out/forest.txt"},
		{"site.a.wav", FormatJSON, "out/site.a.json"},
		{"noext", "", "out/noext.txt"},
	}

	for _, tt := range tests {
		assert.Equal(t, filepath.FromSlash(tt.want), OutputPath("out", tt.input, tt.format))
	}
}

func TestWriteFileAndScanLog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	report := testReport(t)

	path := filepath.Join(dir, "nested", "capuchin_calls_forest.csv")
	require.NoError(t, WriteFile(path, FormatCSV, "forest.wav", report))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Call #,"))

	logPath := filepath.Join(dir, "logs", "scan.log")
	require.NoError(t, AppendScanLog(logPath, "forest.wav", report))
	require.NoError(t, AppendScanLog(logPath, "river.wav", report))
	data, err = os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "Outer window: start 0.00s"))
	assert.Contains(t, string(data), "river.wav")
}
