package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/capuchin-go/internal/errors"
)

const testRate = 16000

func tone(n int, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 0.5 * float32(math.Sin(2*math.Pi*freq*float64(i)/testRate))
	}
	return out
}

func TestExtractNaturalFrameCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples int
		want    int
	}{
		{"six second window", 6 * testRate, 188},
		{"inner chunk", 4800, 10},
		{"exactly one frame", 2048, 5},
		{"tail window", 2 * testRate, 63},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec, err := e.Extract(tone(tt.samples, 1000), testRate, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, 128, spec.Bins)
			assert.Equal(t, tt.want, spec.Frames)
			assert.Len(t, spec.Data, spec.Bins*spec.Frames)
			assert.Equal(t, tt.want, NaturalFrames(tt.samples, 2048, 512))
		})
	}
}

func TestExtractFixesLength(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	opts := DefaultOptions().WithTargetFrames(157)

	// 6 s gives 188 natural frames and must be truncated
	long, err := e.Extract(tone(6*testRate, 2000), testRate, opts)
	require.NoError(t, err)
	assert.Equal(t, 157, long.Frames)

	natural, err := e.Extract(tone(6*testRate, 2000), testRate, DefaultOptions())
	require.NoError(t, err)
	for b := 0; b < natural.Bins; b += 17 {
		for f := 0; f < 157; f += 13 {
			assert.InDelta(t, natural.At(b, f), long.At(b, f), 1e-6)
		}
	}

	// 2 s gives 63 frames and must be padded with the dB floor
	short, err := e.Extract(tone(2*testRate, 2000), testRate, opts)
	require.NoError(t, err)
	assert.Equal(t, 157, short.Frames)
	for b := range short.Bins {
		for f := 63; f < 157; f++ {
			require.InDelta(t, -TopDB, short.At(b, f), 1e-6)
		}
	}

	custom := opts
	custom.PadValue = -100
	padded, err := e.Extract(tone(2*testRate, 2000), testRate, custom)
	require.NoError(t, err)
	assert.InDelta(t, -100, padded.At(0, 156), 1e-6)

	// 0 dB reproduces fix_length padding of a ref=max spectrogram
	custom.PadValue = 0
	atMax, err := e.Extract(tone(2*testRate, 2000), testRate, custom)
	require.NoError(t, err)
	for b := range atMax.Bins {
		require.InDelta(t, 0, atMax.At(b, 100), 1e-6)
	}
}

func TestExtractDecibelRange(t *testing.T) {
	t.Parallel()

	spec, err := NewExtractor().Extract(tone(testRate, 1000), testRate, DefaultOptions())
	require.NoError(t, err)

	assert.InDelta(t, 0.0, spec.Max(), 1e-6)
	for _, v := range spec.Data {
		require.GreaterOrEqual(t, v, float32(-TopDB))
		require.LessOrEqual(t, v, float32(0))
	}
}

func TestExtractSilenceIsFlat(t *testing.T) {
	t.Parallel()

	spec, err := NewExtractor().Extract(make([]float32, 4800), testRate, DefaultOptions())
	require.NoError(t, err)
	for _, v := range spec.Data {
		require.InDelta(t, 0.0, v, 1e-6)
	}
}

func TestExtractTonePeaksInMatchingBand(t *testing.T) {
	t.Parallel()

	spec, err := NewExtractor().Extract(tone(testRate, 1000), testRate, DefaultOptions())
	require.NoError(t, err)

	// frame in the middle of the signal, away from edge effects
	frame := spec.Frames / 2
	peak := 0
	for b := 1; b < spec.Bins; b++ {
		if spec.At(b, frame) > spec.At(peak, frame) {
			peak = b
		}
	}

	bank := melFilterBank(testRate, 2048, 128)
	bin1k := 1000 * 2048 / testRate
	assert.Positive(t, bank[peak][bin1k], "peak mel band should cover 1 kHz")
}

func TestExtractErrors(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	tests := []struct {
		name    string
		samples []float32
		rate    int
		opts    Options
	}{
		{"empty segment", nil, testRate, DefaultOptions()},
		{"shorter than one frame", make([]float32, 2047), testRate, DefaultOptions()},
		{"zero sample rate", make([]float32, 4800), 0, DefaultOptions()},
		{"zero mel bins", make([]float32, 4800), testRate, Options{NFFT: 2048, HopLength: 512}},
		{"zero hop", make([]float32, 4800), testRate, Options{NMels: 128, NFFT: 2048}},
		{"negative target", make([]float32, 4800), testRate, DefaultOptions().WithTargetFrames(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec, err := e.Extract(tt.samples, tt.rate, tt.opts)
			require.Error(t, err)
			assert.Nil(t, spec)
			assert.True(t, errors.IsCategory(err, errors.CategoryFeatureExtraction))
		})
	}
}

func TestMelScaleRoundTrip(t *testing.T) {
	t.Parallel()

	for _, hz := range []float64{0, 100, 999, 1000, 4000, 8000} {
		assert.InDelta(t, hz, melToHz(hzToMel(hz)), 1e-6)
	}
	assert.InDelta(t, 15.0, hzToMel(1000), 1e-9)
}

func TestMelFilterBankShape(t *testing.T) {
	t.Parallel()

	bank := melFilterBank(testRate, 2048, 128)
	require.Len(t, bank, 128)

	for m, filter := range bank {
		require.Len(t, filter, 1025)
		var sum float64
		for _, w := range filter {
			require.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		assert.Positive(t, sum, "filter %d is empty", m)
	}

	// cached banks are shared
	again := melFilterBank(testRate, 2048, 128)
	assert.Same(t, &bank[0][0], &again[0][0])
}

func TestHannWindow(t *testing.T) {
	t.Parallel()

	w := hannWindow(8)
	assert.InDelta(t, 0.0, w[0], 1e-12)
	assert.InDelta(t, 1.0, w[4], 1e-12)
	assert.InDelta(t, w[1], w[7], 1e-12)
}

// chirp sweeps linearly from f0 to f1 over n samples.
func chirp(n int, f0, f1 float64) []float32 {
	out := make([]float32, n)
	dur := float64(n) / testRate
	for i := range out {
		t := float64(i) / testRate
		out[i] = float32(0.5 * math.Sin(2*math.Pi*(f0*t+(f1-f0)*t*t/(2*dur))))
	}
	return out
}

// Reference values follow librosa.power_to_db(librosa.feature.melspectrogram(
// y, sr=16000, n_fft=2048, hop_length=512, n_mels=128), ref=np.max) for a
// 0.5 s chirp from 500 Hz to 6 kHz.
func TestExtractChirpGoldenValues(t *testing.T) {
	t.Parallel()

	spec, err := NewExtractor().Extract(chirp(8000, 500, 6000), testRate, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 16, spec.Frames)

	tests := []struct {
		bin, frame int
		want       float64
	}{
		{35, 1, -0.8171},
		{41, 1, -1.5707},
		{10, 1, -27.6887},
		{68, 4, -0.8513},
		{74, 4, -4.1349},
		{10, 4, -80.0},
		{91, 8, -0.9306},
		{97, 8, -12.6362},
		{106, 12, -0.9304},
		{112, 12, -38.7239},
		{112, 14, -0.9517},
		{118, 14, -45.8228},
		{10, 14, -73.6085},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, float64(spec.At(tt.bin, tt.frame)), 0.05,
			"bin %d frame %d", tt.bin, tt.frame)
	}

	// the peak bin must follow the sweep upward
	peak := func(frame int) int {
		best := 0
		for b := range spec.Bins {
			if spec.At(b, frame) > spec.At(best, frame) {
				best = b
			}
		}
		return best
	}
	assert.Equal(t, 35, peak(1))
	assert.Equal(t, 91, peak(8))
	assert.Equal(t, 112, peak(14))
}
