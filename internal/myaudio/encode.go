package myaudio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	exportBitDepth = 16
	pcmFormat      = 1
)

// WriteWAV writes a waveform as 16-bit mono PCM. Samples are clipped to [-1, 1].
func WriteWAV(path string, w *Waveform) error {
	if w == nil || w.SampleRate <= 0 {
		return fmt.Errorf("invalid waveform")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	outFile, err := os.Create(path) //nolint:gosec // caller-provided export path
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer outFile.Close()

	enc := wav.NewEncoder(outFile, w.SampleRate, exportBitDepth, 1, pcmFormat)

	intSamples := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		intSamples[i] = int(math.Round(v * math.MaxInt16))
	}

	if err := enc.Write(&audio.IntBuffer{
		Data:           intSamples,
		Format:         &audio.Format{SampleRate: w.SampleRate, NumChannels: 1},
		SourceBitDepth: exportBitDepth,
	}); err != nil {
		return fmt.Errorf("failed to write to WAV encoder: %w", err)
	}

	return enc.Close()
}

// Clip returns the samples between start and end seconds as a new waveform.
func (w *Waveform) Clip(start, end float64) *Waveform {
	from := max(0, int(start*float64(w.SampleRate)))
	to := min(len(w.Samples), int(end*float64(w.SampleRate)))
	if from >= to {
		return &Waveform{SampleRate: w.SampleRate}
	}
	clip := make([]float32, to-from)
	copy(clip, w.Samples[from:to])
	return &Waveform{Samples: clip, SampleRate: w.SampleRate}
}
