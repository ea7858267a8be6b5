package myaudio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/capuchin-go/internal/errors"
)

func sine(n, rate int, freq float64, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amp * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func writeStereoWAV(t *testing.T, path string, rate int, left, right []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	data := make([]int, 0, 2*len(left))
	for i := range left {
		data = append(data, left[i], right[i])
	}

	enc := wav.NewEncoder(f, rate, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: rate, NumChannels: 2},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestWriteAndLoadWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	original := &Waveform{Samples: sine(16000, 16000, 440, 0.5), SampleRate: 16000}
	require.NoError(t, WriteWAV(path, original))

	loaded, err := Load(path, 16000)
	require.NoError(t, err)
	assert.Equal(t, 16000, loaded.SampleRate)
	require.Len(t, loaded.Samples, len(original.Samples))
	assert.InDelta(t, 1.0, loaded.Duration(), 1e-9)

	for i := 0; i < len(original.Samples); i += 997 {
		assert.InDelta(t, original.Samples[i], loaded.Samples[i], 1.0/16384)
	}

	info, err := GetAudioInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, info.SampleRate)
	assert.Equal(t, 1, info.NumChannels)
	assert.Equal(t, 16, info.BitDepth)
	assert.Equal(t, 16000, info.TotalSamples)
	assert.InDelta(t, 1.0, info.Duration(), 1e-6)
}

func TestLoadResamplesToTargetRate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone_8k.wav")
	require.NoError(t, WriteWAV(path, &Waveform{Samples: sine(8000, 8000, 200, 0.5), SampleRate: 8000}))

	loaded, err := Load(path, 16000)
	require.NoError(t, err)
	assert.Equal(t, 16000, loaded.SampleRate)
	assert.Len(t, loaded.Samples, 16000)
	assert.InDelta(t, 1.0, loaded.Duration(), 1e-9)
}

func rms(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestLoadSuppressesAliasing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		freq    float64
		wantRMS float64
		delta   float64
	}{
		// 12 kHz folds to 4 kHz at 16 kHz unless filtered first
		{"above target nyquist", 12000, 0, 0.01},
		{"in band", 1000, 0.5 / math.Sqrt2, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "tone_48k.wav")
			require.NoError(t, WriteWAV(path, &Waveform{Samples: sine(48000, 48000, tt.freq, 0.5), SampleRate: 48000}))

			loaded, err := Load(path, 16000)
			require.NoError(t, err)
			require.Len(t, loaded.Samples, 16000)

			// skip the filter start-up transient
			assert.InDelta(t, tt.wantRMS, rms(loaded.Samples[8000:]), tt.delta)
		})
	}
}

func TestAntiAlias(t *testing.T) {
	t.Parallel()

	upsample := sine(1000, 8000, 3000, 0.5)
	before := append([]float32(nil), upsample...)
	require.NoError(t, AntiAlias(upsample, 8000, 16000))
	assert.Equal(t, before, upsample, "upsampling must not filter")

	high := sine(44100, 44100, 10000, 0.5)
	require.NoError(t, AntiAlias(high, 44100, 16000))
	assert.Less(t, rms(high[22050:]), 0.02)
}

func TestLoadDownmixesStereo(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stereo.wav")
	n := 1600
	left := make([]int, n)
	right := make([]int, n)
	for i := range left {
		left[i] = 16384
		right[i] = 0
	}
	writeStereoWAV(t, path, 16000, left, right)

	loaded, err := Load(path, 16000)
	require.NoError(t, err)
	require.Len(t, loaded.Samples, n)
	for _, s := range loaded.Samples {
		assert.InDelta(t, 0.25, s, 1e-4)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.wav"), 16000)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	mp3 := filepath.Join(dir, "call.mp3")
	require.NoError(t, os.WriteFile(mp3, []byte("ID3"), 0o600))
	_, err = Load(mp3, 16000)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a riff header"), 0o600))
	_, err = Load(garbage, 16000)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAudio))

	_, err = Load(garbage, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestValidateAudioFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.wav")
	require.NoError(t, WriteWAV(valid, &Waveform{Samples: sine(1600, 16000, 440, 0.3), SampleRate: 16000}))
	empty := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"valid file", valid, ""},
		{"missing file", filepath.Join(dir, "nope.wav"), "error accessing file"},
		{"directory", dir, "is a directory"},
		{"empty file", empty, "is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateAudioFile(tt.path)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsSupported(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSupported("a/b/forest.WAV"))
	assert.True(t, IsSupported("x.flac"))
	assert.False(t, IsSupported("x.mp3"))
	assert.False(t, IsSupported("wav"))
}

func TestDecodePCMSample(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int32(-1), decodePCMSample([]byte{0xff, 0xff}, 16))
	assert.Equal(t, int32(-1), decodePCMSample([]byte{0xff, 0xff, 0xff}, 24))
	assert.Equal(t, int32(-8388608), decodePCMSample([]byte{0x00, 0x00, 0x80}, 24))
	assert.Equal(t, int32(8388607), decodePCMSample([]byte{0xff, 0xff, 0x7f}, 24))
	assert.Equal(t, int32(1), decodePCMSample([]byte{0x01, 0x00, 0x00, 0x00}, 32))
}

func TestWaveformClip(t *testing.T) {
	t.Parallel()

	w := &Waveform{Samples: make([]float32, 16000*3), SampleRate: 16000}
	clip := w.Clip(1.0, 2.5)
	assert.Len(t, clip.Samples, 24000)
	assert.Empty(t, w.Clip(5, 6).Samples)
	assert.Empty(t, w.Clip(2, 1).Samples)
}
