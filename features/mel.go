package features

import (
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-frontend/algorithms/spectral"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// Mel projects linear-frequency magnitudes onto a mel filterbank.
type Mel struct {
	fb      *mat.Dense // numMels × numBins
	numBins int
	numMels int
}

// NewMel builds the filterbank for an fftSize-point transform.
func NewMel(fftSize, sampleRate, numMels int, fmin, fmax float64) (*Mel, error) {
	fb, err := spectral.NewMelScale().FilterBank(numMels, fftSize, sampleRate, fmin, fmax)
	if err != nil {
		return nil, err
	}
	return &Mel{fb: fb, numBins: fftSize/2 + 1, numMels: numMels}, nil
}

func (m *Mel) Name() string { return "mel" }

func (m *Mel) Forward(_ RunContext, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := requireRank("mel", x, 3, 4); err != nil {
		return nil, err
	}
	if err := requireWidth("mel", x, m.numBins); err != nil {
		return nil, err
	}
	return project(x, m.fb), nil
}

func (m *Mel) OutputDim(int) int { return m.numMels }

func (m *Mel) TimeDecimation() int { return 1 }

// project multiplies every feature row of x by wᵀ.
func project(x *tensor.Tensor, w *mat.Dense) *tensor.Tensor {
	outDim, inDim := w.Dims()
	rows := x.Size() / inDim

	shape := append([]int{}, x.Shape...)
	shape[len(shape)-1] = outDim
	out := tensor.New(shape...)
	if rows == 0 {
		return out
	}

	in := mat.NewDense(rows, inDim, x.Data)
	dst := mat.NewDense(rows, outDim, out.Data)
	dst.Mul(in, w.T())
	return out
}
