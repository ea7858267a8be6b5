// Package myaudio loads recordings into mono float32 waveforms at the detector's sample rate.
package myaudio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/logger"
)

// GetLogger returns the myaudio logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("audio")
}

// Waveform is a mono sample sequence at a known rate. It is never modified
// after Load returns it.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the waveform length in seconds.
func (w *Waveform) Duration() float64 {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// AudioInfo describes an audio file without decoding all of it.
type AudioInfo struct {
	SampleRate   int
	TotalSamples int // per channel
	NumChannels  int
	BitDepth     int
}

// Duration returns the file duration in seconds.
func (a AudioInfo) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(a.TotalSamples) / float64(a.SampleRate)
}

// SupportedExtensions lists the file extensions Load accepts.
var SupportedExtensions = []string{".wav", ".flac"}

// IsSupported reports whether path has a supported audio extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load decodes a WAV or FLAC file, down-mixes it to mono and resamples it to targetRate.
func Load(path string, targetRate int) (*Waveform, error) {
	if targetRate <= 0 {
		return nil, errors.Newf("invalid target sample rate %d", targetRate).
			Component("myaudio").
			Category(errors.CategoryConfiguration).
			Build()
	}

	file, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, errors.FileError(fmt.Errorf("error opening audio file: %w", err), path, 0)
	}
	defer file.Close()

	var (
		samples    []float32
		sourceRate int
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		samples, sourceRate, err = readWAV(file)
	case ".flac":
		samples, sourceRate, err = readFLAC(file)
	default:
		return nil, errors.Newf("unsupported audio format %q", filepath.Ext(path)).
			Component("myaudio").
			Category(errors.CategoryValidation).
			FileContext(path, 0).
			Build()
	}
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudio).
			FileContext(path, 0).
			Context("operation", "decode_audio").
			Build()
	}

	if sourceRate != targetRate {
		GetLogger().Debug("resampling audio",
			logger.String("file", filepath.Base(path)),
			logger.Int("source_rate", sourceRate),
			logger.Int("target_rate", targetRate))
		if err = AntiAlias(samples, sourceRate, targetRate); err != nil {
			return nil, errors.New(err).
				Component("myaudio").
				Category(errors.CategoryAudio).
				Build()
		}
		samples, err = ResampleAudio(samples, sourceRate, targetRate)
		if err != nil {
			return nil, errors.New(fmt.Errorf("error resampling audio: %w", err)).
				Component("myaudio").
				Category(errors.CategoryAudio).
				Build()
		}
	}

	return &Waveform{Samples: samples, SampleRate: targetRate}, nil
}

// GetAudioInfo reads the header of a WAV or FLAC file.
func GetAudioInfo(path string) (AudioInfo, error) {
	file, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return AudioInfo{}, errors.FileError(fmt.Errorf("error opening audio file: %w", err), path, 0)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return readWAVInfo(file)
	case ".flac":
		return readFLACInfo(file)
	default:
		return AudioInfo{}, errors.Newf("unsupported audio format %q", filepath.Ext(path)).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}
}

// ValidateAudioFile checks that path is a non-empty, parseable audio file with samples.
func ValidateAudioFile(path string) error {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return errors.FileError(fmt.Errorf("error accessing file %s: %w", filepath.Base(path), err), path, 0)
	}

	if fileInfo.IsDir() {
		return errors.Newf("the path %s is a directory, not a file", filepath.Base(path)).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}

	if fileInfo.Size() == 0 {
		return errors.Newf("file %s is empty (0 bytes)", filepath.Base(path)).
			Component("myaudio").
			Category(errors.CategoryValidation).
			FileContext(path, 0).
			Build()
	}

	audioInfo, err := GetAudioInfo(path)
	if err != nil {
		return errors.New(fmt.Errorf("invalid audio file %s: %w", filepath.Base(path), err)).
			Component("myaudio").
			Category(errors.CategoryValidation).
			FileContext(path, fileInfo.Size()).
			Build()
	}

	if audioInfo.TotalSamples == 0 {
		return errors.Newf("file %s contains no samples or is still being written", filepath.Base(path)).
			Component("myaudio").
			Category(errors.CategoryValidation).
			FileContext(path, fileInfo.Size()).
			Build()
	}

	return nil
}

// getAudioDivisor returns the divisor converting signed PCM of bitDepth to [-1, 1).
func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported audio bit depth: %d", bitDepth)
	}
}

// downmix averages interleaved channels into mono.
func downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	mono := make([]float32, len(interleaved)/channels)
	for i := range mono {
		var sum float32
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
