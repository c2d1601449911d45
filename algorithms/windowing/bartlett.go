package windowing

import "math"

// Bartlett represents a Bartlett (triangular) window function
type Bartlett struct {
	size         int
	coefficients []float64
}

// NewBartlett creates a new Bartlett window
func NewBartlett(size int) *Bartlett {
	b := &Bartlett{size: size}
	b.generate()
	return b
}

// generate evaluates 1 - |2n/D - 1|, zero at both ends of the period D.
func (b *Bartlett) generate() {
	b.coefficients = make([]float64, b.size)
	if b.size == 1 {
		b.coefficients[0] = 1
		return
	}
	den := float64(b.size)
	for i := range b.size {
		b.coefficients[i] = 1 - math.Abs(2*float64(i)/den-1)
	}
}

// GetCoefficients returns a copy of the window coefficients
func (b *Bartlett) GetCoefficients() []float64 {
	coeffs := make([]float64, len(b.coefficients))
	copy(coeffs, b.coefficients)
	return coeffs
}
