package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		level   LogLevel
		logFn   func(Logger)
		wantOut bool
	}{
		{"debug suppressed at info", LogLevelInfo, func(l Logger) { l.Debug("hidden") }, false},
		{"info shown at info", LogLevelInfo, func(l Logger) { l.Info("shown") }, true},
		{"trace shown at trace", LogLevelTrace, func(l Logger) { l.Trace("shown") }, true},
		{"warn suppressed at error", LogLevelError, func(l Logger) { l.Warn("hidden") }, false},
		{"error always shown", LogLevelError, func(l Logger) { l.Error("shown") }, true},
		{"explicit level", LogLevelDebug, func(l Logger) { l.Log(LogLevelDebug, "shown") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.logFn(NewSlogLogger(&buf, tt.level, time.UTC))
			if tt.wantOut {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestTraceLevelRendersAsTrace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewSlogLogger(&buf, LogLevelTrace, time.UTC).Trace("inner chunk")

	assert.Contains(t, buf.String(), "level=TRACE")
	assert.NotContains(t, buf.String(), "time=")
}

func TestModuleAndFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug, time.UTC).
		Module("detector").
		Module("stage2").
		With(String("file", "forest.wav"))

	log.Info("window confirmed",
		Float64("confidence", 0.912345),
		Int("chunks", 3),
		Duration("elapsed", 1500*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "module=detector.stage2")
	assert.Contains(t, out, "file=forest.wav")
	assert.Contains(t, out, "confidence=0.912")
	assert.Contains(t, out, "chunks=3")
	assert.Contains(t, out, "elapsed=1.5s")
}

func TestWithDoesNotMutateParent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	parent := NewSlogLogger(&buf, LogLevelInfo, time.UTC)
	_ = parent.With(String("child", "yes"))

	parent.Info("parent record")
	assert.NotContains(t, buf.String(), "child=yes")
}

func TestWithContextRunID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	ctx := WithRunID(context.Background(), "run-42")
	log.WithContext(ctx).Info("scan started")
	log.WithContext(context.Background()).Info("no run")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "run_id=run-42")
	assert.NotContains(t, lines[1], "run_id")
	assert.Equal(t, "run-42", RunIDFromContext(ctx))
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Error(nil).Value)
	f := Error(os.ErrNotExist)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, os.ErrNotExist.Error(), f.Value)
}

func TestCentralLoggerFileOutputIsJSON(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "logs", "capuchin.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: logPath, Level: "debug"},
		ModuleLevels: map[string]string{"features": "error"},
	})
	require.NoError(t, err)

	cl.Module("detector").Debug("stage 1", Float64("p", 0.75))
	cl.Module("features").Info("suppressed by module level")
	cl.Module("features").Module("mel").Warn("suppressed through parent level")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "detector", record["module"])
	assert.InDelta(t, 0.75, record["p"], 1e-9)
	_, err = time.Parse(time.RFC3339, record["time"].(string))
	assert.NoError(t, err)
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus_Mons"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	cl, err := NewCentralLogger(&LoggingConfig{
		Console:    &ConsoleOutput{Enabled: false},
		FileOutput: &FileOutput{Enabled: true, Path: filepath.Join(t.TempDir(), "a.log")},
	})
	require.NoError(t, err)
	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())
	require.NoError(t, cl.Close())
}
