// Package features converts waveform segments into log-mel spectrograms.
//
// The transform follows the conventions the capuchin classifier was trained
// with: centered STFT frames under a periodic Hann window, a power spectrum,
// Slaney mel filters and decibels relative to the segment maximum with an
// 80 dB dynamic range.
package features

import (
	"fmt"

	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/logger"
)

const (
	// TopDB is the dynamic range kept below the segment maximum.
	TopDB = 80.0

	// amin guards the logarithm against zero power.
	amin = 1e-10
)

// GetLogger returns the features package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("features")
}

// Options controls a single extraction.
type Options struct {
	NMels     int
	NFFT      int
	HopLength int
	// TargetFrames pads or truncates the time axis. Zero keeps the natural
	// frame count.
	TargetFrames int
	// PadValue fills frames appended when TargetFrames exceeds the natural count.
	PadValue float32
}

// DefaultOptions returns the classifier's training parameters with natural length.
func DefaultOptions() Options {
	return Options{
		NMels:     128,
		NFFT:      2048,
		HopLength: 512,
		PadValue:  -TopDB,
	}
}

// WithTargetFrames returns a copy of o that pads or truncates to frames.
func (o Options) WithTargetFrames(frames int) Options {
	o.TargetFrames = frames
	return o
}

func (o Options) validate(sampleRate int) error {
	switch {
	case sampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	case o.NMels <= 0:
		return fmt.Errorf("mel bin count must be positive, got %d", o.NMels)
	case o.NFFT < 2:
		return fmt.Errorf("FFT size must be at least 2, got %d", o.NFFT)
	case o.HopLength <= 0:
		return fmt.Errorf("hop length must be positive, got %d", o.HopLength)
	case o.TargetFrames < 0:
		return fmt.Errorf("target frames must not be negative, got %d", o.TargetFrames)
	}
	return nil
}

// Spectrogram is a log-mel spectrogram stored bin-major: the value for mel
// bin b and frame f is Data[b*Frames+f].
type Spectrogram struct {
	Bins   int
	Frames int
	Data   []float32
}

// At returns the value at the given mel bin and frame.
func (s *Spectrogram) At(bin, frame int) float32 {
	return s.Data[bin*s.Frames+frame]
}

// Max returns the largest value in the spectrogram.
func (s *Spectrogram) Max() float32 {
	if len(s.Data) == 0 {
		return 0
	}
	m := s.Data[0]
	for _, v := range s.Data[1:] {
		m = max(m, v)
	}
	return m
}

// Extractor computes log-mel spectrograms. It holds no per-call state and is
// safe for concurrent use; filterbanks and windows are shared through a cache.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract computes the log-mel spectrogram of samples. Segments that are
// empty or shorter than one analysis frame return a feature-extraction error
// and no spectrogram.
func (e *Extractor) Extract(samples []float32, sampleRate int, opts Options) (*Spectrogram, error) {
	if err := opts.validate(sampleRate); err != nil {
		return nil, errors.New(err).
			Component("features").
			Category(errors.CategoryFeatureExtraction).
			Context("operation", "validate_options").
			Build()
	}

	if len(samples) == 0 {
		return nil, errors.Newf("cannot extract features from an empty segment").
			Component("features").
			Category(errors.CategoryFeatureExtraction).
			Context("operation", "extract").
			Build()
	}
	if len(samples) < opts.NFFT {
		return nil, errors.Newf("segment of %d samples is shorter than one analysis frame (%d)", len(samples), opts.NFFT).
			Component("features").
			Category(errors.CategoryFeatureExtraction).
			Context("operation", "extract").
			Context("samples", len(samples)).
			Context("n_fft", opts.NFFT).
			Build()
	}

	power := powerSpectrogram(samples, opts.NFFT, opts.HopLength)
	bank := melFilterBank(sampleRate, opts.NFFT, opts.NMels)
	mel := applyFilterBank(bank, power)
	spec := powerToDB(mel, opts.NMels, len(power))

	if opts.TargetFrames > 0 {
		spec = fixLength(spec, opts.TargetFrames, opts.PadValue)
	}

	return spec, nil
}

// NaturalFrames returns the frame count Extract produces for n samples
// without padding or truncation.
func NaturalFrames(n, nfft, hop int) int {
	if hop <= 0 || n <= 0 {
		return 0
	}
	padded := n + 2*(nfft/2)
	return 1 + (padded-nfft)/hop
}

// fixLength pads with padValue or truncates the time axis to frames.
func fixLength(s *Spectrogram, frames int, padValue float32) *Spectrogram {
	if s.Frames == frames {
		return s
	}

	out := &Spectrogram{Bins: s.Bins, Frames: frames, Data: make([]float32, s.Bins*frames)}
	keep := min(s.Frames, frames)
	for b := range s.Bins {
		row := out.Data[b*frames : (b+1)*frames]
		copy(row, s.Data[b*s.Frames:b*s.Frames+keep])
		for f := keep; f < frames; f++ {
			row[f] = padValue
		}
	}
	return out
}
