package equalizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/capuchin-go/internal/errors"
)

func sineRMS(t *testing.T, f *Filter, rate, freq float64) float64 {
	t.Helper()
	n := int(rate) // one second
	buf := make([]float64, n)
	for i := range buf {
		buf[i] = math.Sin(2 * math.Pi * freq * float64(i) / rate)
	}
	f.ApplyBatch(buf)

	// skip the start-up transient
	var sum float64
	tail := buf[n/2:]
	for _, v := range tail {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(tail)))
}

func TestFilter_IsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Filter{}).IsZero())
	var nilFilter *Filter
	assert.True(t, nilFilter.IsZero())

	f, err := NewLowPass(48000, 7200, 0.707, 1)
	require.NoError(t, err)
	assert.False(t, f.IsZero())
	assert.Equal(t, 1, f.Passes())
}

func TestNewFilter_Coefficients(t *testing.T) {
	t.Parallel()

	f := NewFilter(LowPass, 2.0, 0.5, 0.25, 0.1, 0.2, 0.3, 2)

	assert.InDelta(t, 0.05, f.b0a0, 1e-10)
	assert.InDelta(t, 0.1, f.b1a0, 1e-10)
	assert.InDelta(t, 0.15, f.b2a0, 1e-10)
	assert.InDelta(t, 0.25, f.a1a0, 1e-10)
	assert.InDelta(t, 0.125, f.a2a0, 1e-10)
	assert.Len(t, f.in1, 2)
	assert.Len(t, f.out2, 2)
}

func TestNewLowPass_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rate, fc float64
		q        float64
		passes   int
	}{
		{"zero passes", 48000, 7200, 0.707, 0},
		{"zero q", 48000, 7200, 0, 1},
		{"cut off at nyquist", 16000, 8000, 0.707, 1},
		{"negative cut off", 48000, -1, 0.707, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := NewLowPass(tt.rate, tt.fc, tt.q, tt.passes)
			require.Error(t, err)
			assert.Nil(t, f)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestLowPass_DCPassesThrough(t *testing.T) {
	t.Parallel()

	f, err := NewLowPass(48000, 7200, 0.707, 4)
	require.NoError(t, err)

	input := make([]float64, 2000)
	for i := range input {
		input[i] = 0.5
	}
	f.ApplyBatch(input)

	for i := 1900; i < len(input); i++ {
		assert.InDelta(t, 0.5, input[i], 0.001, "sample %d", i)
	}
}

func TestLowPass_FrequencyResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		freq    float64
		minGain float64
		maxGain float64
	}{
		{"passband 1 kHz", 1000, 0.99, 1.01},
		{"passband 3 kHz", 3000, 0.94, 1.01},
		{"cut off 7.2 kHz", 7200, 0.22, 0.28}, // -12 dB over four passes
		{"stopband 12 kHz", 12000, 0, 0.006},  // about -48 dB
		{"stopband 16 kHz", 16000, 0, 0.0002},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := NewLowPass(48000, 7200, 0.707, 4)
			require.NoError(t, err)

			gain := sineRMS(t, f, 48000, tt.freq) * math.Sqrt2
			assert.GreaterOrEqual(t, gain, tt.minGain)
			assert.LessOrEqual(t, gain, tt.maxGain)
		})
	}
}

func TestApplyFloat32MatchesBatch(t *testing.T) {
	t.Parallel()

	a, err := NewLowPass(44100, 7200, 0.707, 2)
	require.NoError(t, err)
	b, err := NewLowPass(44100, 7200, 0.707, 2)
	require.NoError(t, err)

	f32 := make([]float32, 512)
	f64 := make([]float64, 512)
	for i := range f32 {
		v := math.Sin(float64(i) * 0.7)
		f32[i] = float32(v)
		f64[i] = float64(float32(v))
	}

	a.ApplyFloat32(f32)
	b.ApplyBatch(f64)
	for i := range f32 {
		assert.InDelta(t, f64[i], float64(f32[i]), 1e-6)
	}
}

func TestResetClearsState(t *testing.T) {
	t.Parallel()

	f, err := NewLowPass(48000, 7200, 0.707, 1)
	require.NoError(t, err)

	first := []float64{1, 0, 0, 0}
	f.ApplyBatch(first)
	f.Reset()
	second := []float64{1, 0, 0, 0}
	f.ApplyBatch(second)

	assert.Equal(t, first, second)
}
