// Package equalizer provides biquad filters based on Robert Bristow-Johnson's
// audio EQ cookbook. Only the low-pass response is used, to band-limit audio
// before it is decimated.
package equalizer

import (
	"math"

	"github.com/tphakala/capuchin-go/internal/errors"
)

// FilterName identifies the response of a Filter.
type FilterName int

// FilterName constants are digital filter names.
const (
	Undefined FilterName = iota
	LowPass
)

// Filter holds biquad coefficients and per-pass state.
type Filter struct {
	name FilterName

	// state variables
	in1  []float64
	in2  []float64
	out1 []float64
	out2 []float64

	passes int

	// normalised by a0
	b0a0, b1a0, b2a0, a1a0, a2a0 float64
}

// IsZero returns true when f is not initialized.
func (f *Filter) IsZero() bool {
	return f == nil || f.name == Undefined
}

// Passes returns the number of cascaded passes.
func (f *Filter) Passes() int {
	return f.passes
}

// NewFilter creates a new Filter with the specified number of passes.
func NewFilter(name FilterName, a0, a1, a2, b0, b1, b2 float64, passes int) *Filter {
	return &Filter{
		name:   name,
		passes: passes,
		in1:    make([]float64, passes),
		in2:    make([]float64, passes),
		out1:   make([]float64, passes),
		out2:   make([]float64, passes),
		b0a0:   b0 / a0,
		b1a0:   b1 / a0,
		b2a0:   b2 / a0,
		a1a0:   a1 / a0,
		a2a0:   a2 / a0,
	}
}

// NewLowPass returns a low-pass filter.
//
// Parameters:
//
//   - sampleRate ... sample rate in Hz. e.g. 48000.0
//   - frequency ... cut off frequency in Hz, below Nyquist
//   - q ... Q value, 0.707 for a Butterworth response
//   - passes ... number of passes (1 = 12dB/oct, 2 = 24dB/oct, 4 = 48dB/oct)
func NewLowPass(sampleRate, frequency, q float64, passes int) (*Filter, error) {
	switch {
	case passes < 1:
		return nil, invalid("passes must be 1 or greater")
	case q <= 0:
		return nil, invalid("q must be greater than 0")
	case frequency <= 0 || frequency >= sampleRate/2:
		return nil, errors.Newf("cut off %.1f Hz outside (0, %.1f)", frequency, sampleRate/2).
			Component("equalizer").
			Category(errors.CategoryValidation).
			Build()
	}

	w0 := 2.0 * math.Pi * frequency / sampleRate
	alpha := math.Sin(w0) / (2.0 * q)
	cosW0 := math.Cos(w0)

	return NewFilter(
		LowPass,
		1.0+alpha,
		-2.0*cosW0,
		1.0-alpha,
		(1.0-cosW0)/2.0,
		1.0-cosW0,
		(1.0-cosW0)/2.0,
		passes,
	), nil
}

// ApplyBatch filters input in place. State carries over between calls.
func (f *Filter) ApplyBatch(input []float64) {
	for p := range f.passes {
		for i := range input {
			output := f.b0a0*input[i] + f.b1a0*f.in1[p] + f.b2a0*f.in2[p] -
				f.a1a0*f.out1[p] - f.a2a0*f.out2[p]

			f.in2[p] = f.in1[p]
			f.in1[p] = input[i]
			f.out2[p] = f.out1[p]
			f.out1[p] = output

			input[i] = output
		}
	}
}

// ApplyFloat32 filters float32 samples in place.
func (f *Filter) ApplyFloat32(samples []float32) {
	buf := make([]float64, len(samples))
	for i, s := range samples {
		buf[i] = float64(s)
	}
	f.ApplyBatch(buf)
	for i, v := range buf {
		samples[i] = float32(v)
	}
}

// Reset clears the filter state.
func (f *Filter) Reset() {
	clear(f.in1)
	clear(f.in2)
	clear(f.out1)
	clear(f.out2)
}

func invalid(msg string) error {
	return errors.Newf("%s", msg).
		Component("equalizer").
		Category(errors.CategoryValidation).
		Build()
}
