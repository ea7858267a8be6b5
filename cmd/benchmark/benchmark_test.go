package benchmark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/capuchin-go/internal/conf"
)

func TestGetPerformanceRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		avg  time.Duration
		want string
	}{
		{5 * time.Millisecond, "🏆 Excellent"},
		{20 * time.Millisecond, "✅ Good"},
		{80 * time.Millisecond, "👍 Fair"},
		{time.Second, "⚠️ Slow"},
	}
	for _, tt := range tests {
		rating, _ := getPerformanceRating(tt.avg)
		assert.Equal(t, tt.want, rating, "avg %s", tt.avg)
	}
}

func TestSilentWindowMatchesStage1Shape(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Detector = conf.DetectorSettings{
		OuterWindow:  conf.OuterWindowSeconds,
		Stage1Frames: conf.Stage1Frames,
		NMels:        conf.MelBins,
		NFFT:         conf.FFTSize,
		HopLength:    conf.HopLength,
		PadValue:     -conf.TopDB,
	}

	spec, err := silentWindow(settings)
	require.NoError(t, err)
	assert.Equal(t, conf.MelBins, spec.Bins)
	assert.Equal(t, conf.Stage1Frames, spec.Frames)
}
