package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderCarriesCategoryAndContext(t *testing.T) {
	t.Parallel()

	ee := Newf("window too short: %d samples", 12).
		Component("features").
		Category(CategoryFeatureExtraction).
		Context("samples", 12).
		WindowContext(6.0, 6.5).
		Build()

	assert.Equal(t, "features", ee.GetComponent())
	assert.Equal(t, CategoryFeatureExtraction, ee.Category)
	ctx := ee.GetContext()
	assert.Equal(t, 12, ctx["samples"])
	assert.InDelta(t, 6.0, ctx["window_start_s"], 1e-9)
	assert.InDelta(t, 6.5, ctx["window_end_s"], 1e-9)

	// the returned context is a copy
	ctx["samples"] = 99
	assert.Equal(t, 12, ee.GetContext()["samples"])
}

func TestIsCategoryThroughWrapping(t *testing.T) {
	t.Parallel()

	base := ConfigError("inner_overlap", "must be below 1")
	wrapped := fmt.Errorf("detector setup: %w", base)

	assert.True(t, IsCategory(wrapped, CategoryConfiguration))
	assert.False(t, IsCategory(wrapped, CategoryClassification))
	assert.False(t, IsCategory(fmt.Errorf("plain"), CategoryConfiguration))
}

func TestWrapInheritsCategory(t *testing.T) {
	t.Parallel()

	inner := New(NewStd("bad tensor")).Category(CategoryClassification).Build()
	outer := New(fmt.Errorf("stage 2: %w", inner)).Build()

	assert.Equal(t, CategoryClassification, outer.Category)
	require.ErrorIs(t, outer, inner)
}

func TestPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PriorityHigh, New(NewStd("x")).Priority(PriorityHigh).Build().GetPriority())
	assert.Equal(t, PriorityMedium, New(NewStd("x")).Priority("urgent").Build().GetPriority())
	assert.Empty(t, New(NewStd("x")).Build().GetPriority())
}

func TestNilErrorBuild(t *testing.T) {
	t.Parallel()

	ee := New(nil).Category(CategoryValidation).Build()
	require.Error(t, ee)
	assert.NotEmpty(t, ee.Error())
}

func TestFileContextAnonymizesPath(t *testing.T) {
	t.Parallel()

	ee := FileError(NewStd("open failed"), "/home/alice/recordings/forest.WAV", 5*1024*1024)
	ctx := ee.GetContext()

	assert.Equal(t, "absolute-path", ctx["file_type"])
	assert.Equal(t, "wav", ctx["file_extension"])
	assert.Equal(t, "medium", ctx["file_size_category"])
	for _, v := range ctx {
		if s, ok := v.(string); ok {
			assert.NotContains(t, s, "alice")
		}
	}
}

func TestScrubMessageForPrivacy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		message    string
		mustNotHas []string
		mustHave   string
	}{
		{
			name:       "url query",
			message:    "Error at https://broker.example.com?api_key=secret123&token=abc",
			mustNotHas: []string{"secret123", "abc"},
			mustHave:   "https://broker.example.com?[REDACTED]",
		},
		{
			name:       "inline password",
			message:    "mqtt connect failed password=hunter2",
			mustNotHas: []string{"hunter2"},
			mustHave:   "[API_KEY_REDACTED]",
		},
		{
			name:       "home directory",
			message:    "open /home/alice/forest.wav: no such file",
			mustNotHas: []string{"alice"},
			mustHave:   "/home/[USER]/forest.wav",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scrubMessageForPrivacy(tt.message)
			for _, s := range tt.mustNotHas {
				assert.False(t, strings.Contains(got, s), "scrubbed message still contains %q: %s", s, got)
			}
			assert.Contains(t, got, tt.mustHave)
		})
	}
}

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestReporterReceivesBuiltErrors(t *testing.T) {
	rep := &recordingReporter{}
	SetTelemetryReporter(rep)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("model file missing")).Category(CategoryModelLoad).Build()

	require.Len(t, rep.reported, 1)
	assert.Same(t, ee, rep.reported[0])
	assert.True(t, ee.IsReported())
}

func TestGenerateErrorTitle(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("boom")).
		Component("classifier").
		Category(CategoryClassification).
		Context("operation", "tensor_resize").
		Build()

	assert.Equal(t, "Classifier Classification Error Tensor Resize", generateErrorTitle(ee))
}
