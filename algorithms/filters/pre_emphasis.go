package filters

import (
	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
)

// PreEmphasis implements a first-order pre-emphasis filter for speech.
//
// The filter implements the transfer function:
// H(z) = 1 - α*z^-1
//
// With the difference equation:
// y[n] = x[n] - α*x[n-1]
//
// Each buffer is treated as a whole utterance: the first sample is filtered
// against itself, y[0] = x[0] - α*x[0], so no state carries between calls.
//
// References:
//   - L.R. Rabiner, R.W. Schafer, "Digital Processing of Speech Signals",
//     Prentice-Hall, 1978, Chapter 4
type PreEmphasis struct {
	coefficient float64 // Pre-emphasis coefficient α
}

// DefaultPreEmphasisCoefficient is the value commonly used for 16 kHz speech.
const DefaultPreEmphasisCoefficient = 0.97

// NewPreEmphasis creates a pre-emphasis filter with specified coefficient.
//
// Parameters:
//   - coefficient: Pre-emphasis coefficient α in [0, 1)
//     Higher values = more emphasis of high frequencies
func NewPreEmphasis(coefficient float64) (*PreEmphasis, error) {
	if coefficient < 0 || coefficient >= 1 {
		return nil, common.Configf("pre-emphasis coefficient must be in [0, 1): %v", coefficient)
	}
	return &PreEmphasis{coefficient: coefficient}, nil
}

// ProcessBuffer returns the filtered copy of input.
func (pe *PreEmphasis) ProcessBuffer(input []float64) []float64 {
	out := make([]float64, len(input))
	copy(out, input)
	pe.ProcessInPlace(out)
	return out
}

// ProcessInPlace filters buf in place, walking backwards so every x[n-1]
// is still the unfiltered input.
func (pe *PreEmphasis) ProcessInPlace(buf []float64) {
	if len(buf) == 0 {
		return
	}
	for n := len(buf) - 1; n > 0; n-- {
		buf[n] -= pe.coefficient * buf[n-1]
	}
	buf[0] -= pe.coefficient * buf[0]
}
