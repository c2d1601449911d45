package windowing

import "math"

// SqrtHann is the elementwise square root of the periodic Hann window. Used as
// both analysis and synthesis window their product is a Hann window, which
// sums to a constant at 50% overlap.
type SqrtHann struct {
	hann *Hann
}

// NewSqrtHann creates a periodic square-root Hann window.
func NewSqrtHann(size int) *SqrtHann {
	return &SqrtHann{hann: NewHann(size)}
}

// GetCoefficients returns a copy of the window coefficients
func (s *SqrtHann) GetCoefficients() []float64 {
	coeffs := s.hann.GetCoefficients()
	for i, c := range coeffs {
		coeffs[i] = math.Sqrt(c)
	}
	return coeffs
}
