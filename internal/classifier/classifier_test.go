package classifier

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/features"
	"github.com/tphakala/capuchin-go/internal/observability/metrics"
)

func testSpectrogram(bins, frames int) *features.Spectrogram {
	s := &features.Spectrogram{Bins: bins, Frames: frames, Data: make([]float32, bins*frames)}
	for i := range s.Data {
		s.Data[i] = float32(i)
	}
	return s
}

func TestToTensorLayout(t *testing.T) {
	t.Parallel()

	spec := testSpectrogram(2, 3)
	tensor := ToTensor(spec)
	require.Len(t, tensor, 2*3*Channels)

	// NHWC: index = ((bin*frames)+frame)*channels + channel
	for b := range spec.Bins {
		for f := range spec.Frames {
			for c := range Channels {
				assert.Equal(t, spec.At(b, f), tensor[(b*spec.Frames+f)*Channels+c])
			}
		}
	}
}

func TestFuncAdapter(t *testing.T) {
	t.Parallel()

	calls := 0
	var c Classifier = Func(func(spec *features.Spectrogram) (float64, error) {
		calls++
		return float64(spec.Frames) / 10, nil
	})

	p, err := c.Classify(testSpectrogram(1, 7))
	require.NoError(t, err)
	assert.InDelta(t, 0.7, p, 1e-12)
	assert.Equal(t, 1, calls)
}

func TestProbability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  float32
		want float64
	}{
		{0.25, 0.25},
		{-0.1, 0},
		{1.5, 1},
		{0, 0},
		{1, 1},
	}
	for _, tt := range tests {
		p, err := probability(tt.raw)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, p, 1e-7)
	}

	_, err := probability(float32(math.NaN()))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryClassification))
}

func TestValidateSpectrogram(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateSpectrogram(testSpectrogram(4, 4)))

	bad := []*features.Spectrogram{
		nil,
		{Bins: 0, Frames: 4},
		{Bins: 4, Frames: 4, Data: make([]float32, 3)},
	}
	for _, s := range bad {
		err := validateSpectrogram(s)
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryClassification))
	}
}

func TestInstrumentRecordsOutcome(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewClassifierMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	fail := false
	base := Func(func(*features.Spectrogram) (float64, error) {
		if fail {
			return 0, fmt.Errorf("boom")
		}
		return 0.9, nil
	})

	c := Instrument(base, m, metrics.StageTwo)
	_, err = c.Classify(testSpectrogram(1, 1))
	require.NoError(t, err)
	fail = true
	_, err = c.Classify(testSpectrogram(1, 1))
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.InferenceTotal.WithLabelValues(metrics.StageTwo, metrics.StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.InferenceTotal.WithLabelValues(metrics.StageTwo, metrics.StatusError)), 0)

	// nil metrics leaves the classifier untouched
	assert.IsType(t, Func(nil), Instrument(base, nil, metrics.StageOne))
}

func TestNewTFLiteMissingModel(t *testing.T) {
	t.Parallel()

	_, err := NewTFLite(TFLiteOptions{ModelPath: filepath.Join(t.TempDir(), "missing.tflite")})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}

func TestNilTFLiteReturnsError(t *testing.T) {
	t.Parallel()

	var model *TFLite
	var c Classifier = model // typed nil passes a c == nil check

	require.NotPanics(t, func() {
		_, err := c.Classify(testSpectrogram(128, 157))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryClassification))
	})
	assert.NotPanics(t, model.Close)
}
