package spectral

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
)

// Kernel is the windowed DFT basis that realises framing, windowing and the
// DFT as one strided projection.
//
// M has 2B rows and FrameLen columns: rows [0, B) hold cos(2πkn/B), rows
// [B, 2B) hold -sin(2πkn/B), each column n scaled by window[n] and by the
// normalisation factor. Logically this is a [2B, 1, FrameLen] 1-D
// convolution filter bank.
type Kernel struct {
	FrameLen   int
	FFTSize    int
	Normalized bool
	Inverse    bool
	M          *mat.Dense
}

// FFTSize returns the transform size for a frame length: the frame length
// itself or the next power of two.
func FFTSize(frameLen int, roundPowOfTwo bool) int {
	if roundPowOfTwo {
		return common.NextPowerOfTwo(frameLen)
	}
	return frameLen
}

// BuildKernel constructs the forward or inverse kernel.
//
// With normalized set both directions are scaled by 1/sqrt(B) so that
// K^H·K = I. An unnormalised inverse kernel is scaled by 1/B so that the
// round trip divides by the FFT size exactly once.
func BuildKernel(frameLen int, window []float64, roundPowOfTwo, normalized, inverse bool) (*Kernel, error) {
	if frameLen <= 0 {
		return nil, common.Configf("frame_len must be positive: %d", frameLen)
	}
	if len(window) != frameLen {
		return nil, common.Configf("window length %d doesn't match frame_len %d", len(window), frameLen)
	}

	b := FFTSize(frameLen, roundPowOfTwo)

	scale := 1.0
	switch {
	case normalized:
		scale = 1 / math.Sqrt(float64(b))
	case inverse:
		scale = 1 / float64(b)
	}

	m := mat.NewDense(2*b, frameLen, nil)
	for k := range b {
		for n := range frameLen {
			// reduce k*n mod B so the angle stays small for large transforms
			theta := 2 * math.Pi * float64((k*n)%b) / float64(b)
			g := scale * window[n]
			m.Set(k, n, g*math.Cos(theta))
			m.Set(b+k, n, -g*math.Sin(theta))
		}
	}

	return &Kernel{
		FrameLen:   frameLen,
		FFTSize:    b,
		Normalized: normalized,
		Inverse:    inverse,
		M:          m,
	}, nil
}

// Planes returns the real and imaginary basis rows restricted to the first
// numBins bins, stacked into a (2·numBins)×FrameLen matrix.
func (k *Kernel) Planes(numBins int) *mat.Dense {
	if numBins == k.FFTSize {
		return k.M
	}
	out := mat.NewDense(2*numBins, k.FrameLen, nil)
	for i := range numBins {
		out.SetRow(i, k.M.RawRowView(i))
		out.SetRow(numBins+i, k.M.RawRowView(k.FFTSize+i))
	}
	return out
}
