package myaudio

import (
	"fmt"

	"github.com/tphakala/capuchin-go/internal/myaudio/equalizer"
)

// Anti-alias filter: four cascaded Butterworth biquads below the target Nyquist.
const (
	antiAliasCutoff = 0.45 // fraction of the target rate
	antiAliasQ      = 0.707
	antiAliasPasses = 4
)

// AntiAlias low-pass filters samples in place so that decimating them to
// targetRate does not fold content above the new Nyquist back into the band.
// It does nothing when targetRate is not lower than sourceRate.
func AntiAlias(samples []float32, sourceRate, targetRate int) error {
	if targetRate >= sourceRate || len(samples) == 0 {
		return nil
	}
	filter, err := equalizer.NewLowPass(float64(sourceRate), antiAliasCutoff*float64(targetRate), antiAliasQ, antiAliasPasses)
	if err != nil {
		return fmt.Errorf("error creating anti-alias filter: %w", err)
	}
	filter.ApplyFloat32(samples)
	return nil
}

// ResampleAudio resamples audio with cubic interpolation. Inputs shorter than
// four samples fall back to nearest-neighbour.
func ResampleAudio(audio []float32, originalRate, targetRate int) ([]float32, error) {
	if originalRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: %d -> %d", originalRate, targetRate)
	}
	if originalRate == targetRate || len(audio) == 0 {
		return audio, nil
	}

	ratio := float64(targetRate) / float64(originalRate)
	newLength := int(int64(len(audio)) * int64(targetRate) / int64(originalRate))
	resampled := make([]float32, newLength)

	audioLength := len(audio)
	if audioLength < 4 {
		for i := range resampled {
			resampled[i] = audio[min(int(float64(i)/ratio), audioLength-1)]
		}
		return resampled, nil
	}

	lastIndex := audioLength - 3

	for i := range newLength {
		origPos := float64(i) / ratio
		index := int(origPos)

		// keep the 4-point neighbourhood in range
		if index < 1 {
			index = 1
		} else if index > lastIndex {
			index = lastIndex
		}

		frac := float32(origPos - float64(index))

		y0, y1, y2, y3 := audio[index-1], audio[index], audio[index+1], audio[index+2]
		mu2 := frac * frac
		a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
		a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
		a2 := -0.5*y0 + 0.5*y2
		a3 := y1

		resampled[i] = a0*frac*mu2 + a1*mu2 + a2*frac + a3
	}

	return resampled, nil
}
