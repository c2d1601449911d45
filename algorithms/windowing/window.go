// Package windowing builds the analysis/synthesis windows used by the STFT
// engines.
//
// All families are generated in their periodic form (denominator N rather
// than N-1) so that shifted copies tile cleanly under overlap-add.
package windowing

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-vecmath"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
)

// Family identifies a window function.
type Family string

const (
	FamilyRectangular Family = "rect"
	FamilyHann        Family = "hann"
	FamilyHamming     Family = "hamm"
	FamilyBlackman    Family = "blackman"
	FamilyBartlett    Family = "bartlett"
	FamilySqrtHann    Family = "sqrthann"
)

var familyAliases = map[string]Family{
	"rect":        FamilyRectangular,
	"rectangular": FamilyRectangular,
	"hann":        FamilyHann,
	"hamm":        FamilyHamming,
	"hamming":     FamilyHamming,
	"blackman":    FamilyBlackman,
	"bartlett":    FamilyBartlett,
	"sqrthann":    FamilySqrtHann,
	"sqrt-hann":   FamilySqrtHann,
	"sqrt_hann":   FamilySqrtHann,
}

// Families lists the recognised window families in canonical form.
func Families() []Family {
	return []Family{FamilyRectangular, FamilyHann, FamilyHamming, FamilyBlackman, FamilyBartlett, FamilySqrtHann}
}

// ParseFamily resolves a configuration name (canonical or alias) to a Family.
func ParseFamily(name string) (Family, error) {
	f, ok := familyAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", common.Configf("unknown window type: %q (want one of %v)", name, Families())
	}
	return f, nil
}

// generator is implemented by every family type in this package.
type generator interface {
	GetCoefficients() []float64
}

// Window is an immutable set of window coefficients.
type Window struct {
	family Family
	coeffs []float64
}

// Build returns the periodic window of the given family and length.
func Build(family Family, length int) (*Window, error) {
	if length <= 0 {
		return nil, common.Configf("window size must be positive: %d", length)
	}

	f, err := ParseFamily(string(family))
	if err != nil {
		return nil, err
	}

	var g generator
	switch f {
	case FamilyRectangular:
		g = NewRectangular(length)
	case FamilyHann:
		g = NewHann(length)
	case FamilyHamming:
		g = NewHamming(length)
	case FamilyBlackman:
		g = NewBlackman(length)
	case FamilyBartlett:
		g = NewBartlett(length)
	case FamilySqrtHann:
		g = NewSqrtHann(length)
	default:
		return nil, common.Configf("unknown window type: %q", family)
	}

	return &Window{family: f, coeffs: g.GetCoefficients()}, nil
}

// Family returns the window family.
func (w *Window) Family() Family { return w.family }

// Len returns the number of coefficients.
func (w *Window) Len() int { return len(w.coeffs) }

// Coefficients returns a copy of the coefficients.
func (w *Window) Coefficients() []float64 {
	out := make([]float64, len(w.coeffs))
	copy(out, w.coeffs)
	return out
}

// At returns coefficient i.
func (w *Window) At(i int) float64 { return w.coeffs[i] }

// ApplyInPlace multiplies frame by the window.
func (w *Window) ApplyInPlace(frame []float64) error {
	if len(frame) != len(w.coeffs) {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(frame), len(w.coeffs))
	}
	vecmath.MulBlockInPlace(frame, w.coeffs)
	return nil
}

// Squared returns w[n]^2, the per-frame contribution to the overlap-add
// normaliser.
func (w *Window) Squared() []float64 {
	out := make([]float64, len(w.coeffs))
	vecmath.MulBlock(out, w.coeffs, w.coeffs)
	return out
}
