// Package classifier adapts binary call classifiers to log-mel spectrograms.
package classifier

import (
	"math"

	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/features"
	"github.com/tphakala/capuchin-go/internal/logger"
)

// Channels is the channel count of the classifier input tensor.
const Channels = 3

// GetLogger returns the classifier package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("classifier")
}

// Classifier maps a spectrogram to the probability that it contains a call.
// Implementations are stateless per call and deterministic for identical
// input and weights.
type Classifier interface {
	Classify(spec *features.Spectrogram) (float64, error)
}

// Func adapts an ordinary function to the Classifier interface.
type Func func(spec *features.Spectrogram) (float64, error)

// Classify calls f(spec).
func (f Func) Classify(spec *features.Spectrogram) (float64, error) {
	return f(spec)
}

// Closer is implemented by classifiers that hold native resources.
type Closer interface {
	Close()
}

// ToTensor lays the spectrogram out as a [1, bins, frames, 3] NHWC tensor,
// replicating the single channel three times.
func ToTensor(spec *features.Spectrogram) []float32 {
	return fillTensor(make([]float32, spec.Bins*spec.Frames*Channels), spec)
}

// fillTensor writes the NHWC layout of spec into dst, which must hold
// Bins*Frames*Channels values.
func fillTensor(dst []float32, spec *features.Spectrogram) []float32 {
	i := 0
	for b := range spec.Bins {
		row := spec.Data[b*spec.Frames : (b+1)*spec.Frames]
		for _, v := range row {
			dst[i], dst[i+1], dst[i+2] = v, v, v
			i += Channels
		}
	}
	return dst
}

// validateSpectrogram rejects inputs no classifier can accept.
func validateSpectrogram(spec *features.Spectrogram) error {
	if spec == nil || spec.Bins <= 0 || spec.Frames <= 0 || len(spec.Data) != spec.Bins*spec.Frames {
		return errors.Newf("malformed spectrogram").
			Component("classifier").
			Category(errors.CategoryClassification).
			Context("operation", "validate_input").
			Build()
	}
	return nil
}

// probability converts a raw sigmoid output to [0,1]. NaN is an error.
func probability(raw float32) (float64, error) {
	p := float64(raw)
	if math.IsNaN(p) {
		return 0, errors.Newf("classifier returned NaN").
			Component("classifier").
			Category(errors.CategoryClassification).
			Context("operation", "read_output").
			Build()
	}
	return min(1, max(0, p)), nil
}
