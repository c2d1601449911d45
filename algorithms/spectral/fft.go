package spectral

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// FFT computes frame spectra with mjibson/go-dsp. It is the alternative to
// the dense kernel projection and produces the same planes.
type FFT struct {
	size       int
	normalized bool
}

// NewFFT creates an FFT backend for transforms of the given size.
func NewFFT(size int, normalized bool) *FFT {
	return &FFT{size: size, normalized: normalized}
}

// Size returns the transform size B.
func (f *FFT) Size() int {
	return f.size
}

// Compute transforms one windowed frame, zero-padded to B, and writes the
// first len(re) bins into re and im.
func (f *FFT) Compute(frame []float64, re, im []float64) {
	buf := make([]float64, f.size)
	copy(buf, frame)

	spec := fft.FFTReal(buf)

	scale := 1.0
	if f.normalized {
		scale = 1 / math.Sqrt(float64(f.size))
	}
	for k := range re {
		re[k] = real(spec[k]) * scale
		im[k] = imag(spec[k]) * scale
	}
}

// ComputeInverseReal inverts a full B-bin spectrum and returns the real part
// of the first n samples.
func (f *FFT) ComputeInverseReal(re, im []float64, n int) []float64 {
	spec := make([]complex128, f.size)
	for k := range spec {
		spec[k] = complex(re[k], im[k])
	}

	// go-dsp divides by B; the normalised inverse divides by sqrt(B) instead
	scale := 1.0
	if f.normalized {
		scale = math.Sqrt(float64(f.size))
	}

	result := fft.IFFT(spec)
	out := make([]float64, n)
	for i := range out {
		out[i] = real(result[i]) * scale
	}
	return out
}
