package features

import (
	"fmt"
	"math"

	"github.com/patrickmn/go-cache"
)

// filterCache holds windows and mel filterbanks keyed by their parameters.
// Entries never expire and there is no janitor goroutine.
var filterCache = cache.New(cache.NoExpiration, 0)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSP       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSP
)

var melLogStep = math.Log(6.4) / 27.0

func cacheKey(kind string, params ...int) string {
	return fmt.Sprint(kind, params)
}

func hzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
	}
	return hz / melFSP
}

func melToHz(mel float64) float64 {
	if mel >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
	}
	return melFSP * mel
}

// melFilterBank returns nMels triangular filters over nfft/2+1 FFT bins
// spanning 0 Hz to Nyquist. Each filter is scaled to unit area (Slaney norm).
func melFilterBank(sampleRate, nfft, nMels int) [][]float64 {
	key := cacheKey("mel", sampleRate, nfft, nMels)
	if bank, ok := filterCache.Get(key); ok {
		return bank.([][]float64)
	}

	numBins := nfft/2 + 1
	nyquist := float64(sampleRate) / 2

	fftFreqs := make([]float64, numBins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * nyquist / float64(numBins-1)
	}

	// nMels+2 edges evenly spaced in mel
	minMel, maxMel := hzToMel(0), hzToMel(nyquist)
	edges := make([]float64, nMels+2)
	for i := range edges {
		edges[i] = melToHz(minMel + (maxMel-minMel)*float64(i)/float64(nMels+1))
	}

	bank := make([][]float64, nMels)
	for m := range nMels {
		lo, center, hi := edges[m], edges[m+1], edges[m+2]
		norm := 2.0 / (hi - lo)
		filter := make([]float64, numBins)
		for k, f := range fftFreqs {
			lower := (f - lo) / (center - lo)
			upper := (hi - f) / (hi - center)
			filter[k] = max(0, min(lower, upper)) * norm
		}
		bank[m] = filter
	}

	filterCache.SetDefault(key, bank)
	return bank
}

// applyFilterBank projects power frames (frames x fft bins) onto the mel bank.
func applyFilterBank(bank, power [][]float64) [][]float64 {
	out := make([][]float64, len(power))
	for t, frame := range power {
		mel := make([]float64, len(bank))
		for m, filter := range bank {
			var sum float64
			for k, w := range filter {
				if w != 0 {
					sum += w * frame[k]
				}
			}
			mel[m] = sum
		}
		out[t] = mel
	}
	return out
}
