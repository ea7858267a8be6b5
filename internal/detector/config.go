package detector

import (
	"fmt"

	"github.com/tphakala/capuchin-go/internal/conf"
	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/features"
)

// Config holds the two-stage scan parameters.
type Config struct {
	ThresholdStage1     float64 // Stage 1 triage threshold, decision is p > threshold
	ThresholdStage2     float64 // Stage 2 confirmation threshold
	OuterWindowDuration float64 // seconds
	InnerStepDuration   float64 // seconds
	InnerOverlap        float64 // fraction of the inner step shared by consecutive chunks, [0,1)

	Stage1Frames int     // time frames of the Stage 1 spectrogram
	NMels        int     // mel bins
	NFFT         int     // FFT size
	HopLength    int     // STFT hop in samples
	PadValue     float32 // dB value for padded Stage 1 frames

	MaxFailureRate float64 // classification failure ratio above which a scan fails
	Workers        int     // outer windows processed concurrently
}

// DefaultConfig returns the parameters the capuchin model was trained with.
func DefaultConfig() Config {
	return Config{
		ThresholdStage1:     0.5,
		ThresholdStage2:     0.6,
		OuterWindowDuration: conf.OuterWindowSeconds,
		InnerStepDuration:   conf.InnerStepSeconds,
		InnerOverlap:        0.0,
		Stage1Frames:        conf.Stage1Frames,
		NMels:               conf.MelBins,
		NFFT:                conf.FFTSize,
		HopLength:           conf.HopLength,
		PadValue:            -features.TopDB,
		MaxFailureRate:      0.5,
		Workers:             1,
	}
}

// ConfigFromSettings converts the detector section of the application settings.
func ConfigFromSettings(s *conf.DetectorSettings) Config {
	return Config{
		ThresholdStage1:     s.ThresholdStage1,
		ThresholdStage2:     s.ThresholdStage2,
		OuterWindowDuration: s.OuterWindow,
		InnerStepDuration:   s.InnerStep,
		InnerOverlap:        s.InnerOverlap,
		Stage1Frames:        s.Stage1Frames,
		NMels:               s.NMels,
		NFFT:                s.NFFT,
		HopLength:           s.HopLength,
		PadValue:            float32(s.PadValue),
		MaxFailureRate:      s.MaxFailureRate,
		Workers:             s.Workers,
	}
}

// Validate reports the first invalid parameter as a configuration error.
func (c Config) Validate() error {
	if err := c.check(); err != nil {
		return configError(err)
	}
	return nil
}

func (c Config) check() error {
	switch {
	case c.ThresholdStage1 < 0 || c.ThresholdStage1 > 1:
		return fmt.Errorf("stage 1 threshold must be within [0,1], got %g", c.ThresholdStage1)
	case c.ThresholdStage2 < 0 || c.ThresholdStage2 > 1:
		return fmt.Errorf("stage 2 threshold must be within [0,1], got %g", c.ThresholdStage2)
	case c.OuterWindowDuration <= 0:
		return fmt.Errorf("outer window duration must be positive, got %g", c.OuterWindowDuration)
	case c.InnerStepDuration <= 0:
		return fmt.Errorf("inner step duration must be positive, got %g", c.InnerStepDuration)
	case c.InnerOverlap < 0 || c.InnerOverlap >= 1:
		return fmt.Errorf("inner overlap must be within [0,1), got %g", c.InnerOverlap)
	case c.Stage1Frames <= 0:
		return fmt.Errorf("stage 1 frame count must be positive, got %d", c.Stage1Frames)
	case c.NMels <= 0 || c.NFFT <= 0 || c.HopLength <= 0:
		return fmt.Errorf("mel bins, FFT size and hop length must be positive")
	case c.MaxFailureRate <= 0 || c.MaxFailureRate > 1:
		return fmt.Errorf("max failure rate must be within (0,1], got %g", c.MaxFailureRate)
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// sampling holds the window arithmetic resolved for one sample rate.
type sampling struct {
	rate         int
	outerSamples int
	innerSamples int
	innerHop     int
}

// resolve converts durations to sample counts. An inner hop of zero samples
// would never advance and is a configuration error.
func (c Config) resolve(sampleRate int) (sampling, error) {
	if sampleRate <= 0 {
		return sampling{}, configError(fmt.Errorf("sample rate must be positive, got %d", sampleRate))
	}

	s := sampling{
		rate:         sampleRate,
		outerSamples: int(c.OuterWindowDuration * float64(sampleRate)),
		innerSamples: int(c.InnerStepDuration * float64(sampleRate)),
	}
	s.innerHop = int(float64(s.innerSamples) * (1 - c.InnerOverlap))

	switch {
	case s.outerSamples <= 0:
		return s, configError(fmt.Errorf("outer window of %gs is shorter than one sample at %d Hz", c.OuterWindowDuration, sampleRate))
	case s.innerSamples <= 0:
		return s, configError(fmt.Errorf("inner step of %gs is shorter than one sample at %d Hz", c.InnerStepDuration, sampleRate))
	case s.innerHop <= 0:
		return s, configError(fmt.Errorf("inner hop rounds to zero samples (step %d, overlap %g)", s.innerSamples, c.InnerOverlap))
	}
	return s, nil
}

func (c Config) stage1Options() features.Options {
	return features.Options{
		NMels:        c.NMels,
		NFFT:         c.NFFT,
		HopLength:    c.HopLength,
		TargetFrames: c.Stage1Frames,
		PadValue:     c.PadValue,
	}
}

func (c Config) stage2Options() features.Options {
	opts := c.stage1Options()
	opts.TargetFrames = 0
	return opts
}

func configError(err error) error {
	return errors.New(err).
		Component("detector").
		Category(errors.CategoryConfiguration).
		Build()
}
