package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// hannWindow returns a periodic Hann window of length n, the variant used
// for spectral analysis.
func hannWindow(n int) []float64 {
	key := cacheKey("hann", n)
	if w, ok := filterCache.Get(key); ok {
		return w.([]float64)
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	filterCache.SetDefault(key, w)
	return w
}

// powerSpectrogram returns |STFT|^2 as frames of nfft/2+1 bins. The signal is
// zero padded by nfft/2 on both sides so frame t is centered on sample t*hop.
func powerSpectrogram(samples []float32, nfft, hop int) [][]float64 {
	pad := nfft / 2
	padded := make([]float64, len(samples)+2*pad)
	for i, s := range samples {
		padded[pad+i] = float64(s)
	}

	window := hannWindow(nfft)
	fft := fourier.NewFFT(nfft)
	numFrames := NaturalFrames(len(samples), nfft, hop)

	frame := make([]float64, nfft)
	coeffs := make([]complex128, nfft/2+1)
	power := make([][]float64, numFrames)

	for t := range numFrames {
		start := t * hop
		for i := range frame {
			frame[i] = padded[start+i] * window[i]
		}
		coeffs = fft.Coefficients(coeffs, frame)

		bins := make([]float64, len(coeffs))
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			bins[k] = re*re + im*im
		}
		power[t] = bins
	}

	return power
}

// powerToDB converts mel power (frames x bins) to a bin-major spectrogram in
// decibels relative to the maximum, floored at TopDB below it.
func powerToDB(mel [][]float64, bins, frames int) *Spectrogram {
	ref := amin
	for _, frame := range mel {
		for _, v := range frame {
			ref = max(ref, v)
		}
	}
	refDB := 10 * math.Log10(ref)

	out := &Spectrogram{Bins: bins, Frames: frames, Data: make([]float32, bins*frames)}
	for t, frame := range mel {
		for b, v := range frame {
			db := 10*math.Log10(max(v, amin)) - refDB
			out.Data[b*frames+t] = float32(max(db, -TopDB))
		}
	}
	return out
}
