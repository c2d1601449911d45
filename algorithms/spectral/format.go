package spectral

import (
	"fmt"
	"math"
	"slices"

	"github.com/cwbudde/algo-vecmath"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// Format selects the spectrum representation exchanged with the engines.
type Format string

const (
	// FormatPolar carries magnitude (X) and phase (Y).
	FormatPolar Format = "polar"
	// FormatComplex carries real (X) and imaginary (Y) parts.
	FormatComplex Format = "complex"
	// FormatPacked carries one tensor with a trailing [re, im] axis.
	FormatPacked Format = "packed"
)

// ParseFormat validates a format name. "real" is accepted for packed.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "polar":
		return FormatPolar, nil
	case "complex":
		return FormatComplex, nil
	case "packed", "real":
		return FormatPacked, nil
	}
	return "", common.Configf("unknown spectrum format: %q", s)
}

// Spectra is an STFT result or an iSTFT input. X and Y have shape
// N×(C)×F×T; Packed has shape N×(C)×F×T×2.
type Spectra struct {
	Format Format
	X, Y   *tensor.Tensor
	Packed *tensor.Tensor
}

// Tensor returns the spectra as a single tensor: Packed as is, otherwise X
// and Y stacked along a new leading axis.
func (s *Spectra) Tensor() (*tensor.Tensor, error) {
	if s.Format == FormatPacked {
		if s.Packed == nil {
			return nil, common.Shapef("packed spectra have no data")
		}
		return s.Packed, nil
	}
	if s.X == nil || s.Y == nil {
		return nil, common.Shapef("%s spectra need both planes", s.Format)
	}
	return tensor.Stack([]*tensor.Tensor{s.X, s.Y})
}

// newSpectra converts real/imaginary planes into the requested format.
func newSpectra(re, im *tensor.Tensor, format Format) (*Spectra, error) {
	switch format {
	case FormatComplex:
		return &Spectra{Format: format, X: re, Y: im}, nil

	case FormatPolar:
		mag := tensor.New(re.Shape...)
		pha := tensor.New(re.Shape...)
		vecmath.Magnitude(mag.Data, re.Data, im.Data)
		for i := range pha.Data {
			pha.Data[i] = math.Atan2(im.Data[i], re.Data[i])
		}
		return &Spectra{Format: format, X: mag, Y: pha}, nil

	case FormatPacked:
		packed := tensor.New(slices.Concat(re.Shape, []int{2})...)
		for i := range re.Data {
			packed.Data[2*i] = re.Data[i]
			packed.Data[2*i+1] = im.Data[i]
		}
		return &Spectra{Format: format, Packed: packed}, nil
	}
	return nil, common.Configf("unknown spectrum format: %q", format)
}

// Parts returns the real and imaginary planes regardless of format.
func (s *Spectra) Parts() (re, im *tensor.Tensor, err error) {
	switch s.Format {
	case FormatComplex:
		if s.X == nil || s.Y == nil {
			return nil, nil, common.Shapef("complex spectra need both real and imaginary parts")
		}
		if s.X.Size() != s.Y.Size() {
			return nil, nil, common.Shapef("real %v and imaginary %v parts differ", s.X.Shape, s.Y.Shape)
		}
		return s.X, s.Y, nil

	case FormatPolar:
		if s.X == nil || s.Y == nil {
			return nil, nil, common.Shapef("polar spectra need both magnitude and phase")
		}
		if s.X.Size() != s.Y.Size() {
			return nil, nil, common.Shapef("magnitude %v and phase %v differ", s.X.Shape, s.Y.Shape)
		}
		re = tensor.New(s.X.Shape...)
		im = tensor.New(s.X.Shape...)
		for i, m := range s.X.Data {
			sin, cos := math.Sincos(s.Y.Data[i])
			re.Data[i] = m * cos
			im.Data[i] = m * sin
		}
		return re, im, nil

	case FormatPacked:
		if s.Packed == nil || s.Packed.Rank() < 1 || s.Packed.Dim(-1) != 2 {
			return nil, nil, common.Shapef("packed spectra need a trailing axis of size 2")
		}
		shape := s.Packed.Shape[:s.Packed.Rank()-1]
		re = tensor.New(shape...)
		im = tensor.New(shape...)
		for i := range re.Data {
			re.Data[i] = s.Packed.Data[2*i]
			im.Data[i] = s.Packed.Data[2*i+1]
		}
		return re, im, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown spectrum format %q", common.ErrConfig, s.Format)
}
