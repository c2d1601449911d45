package features

import (
	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-frontend/algorithms/spectral"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// DCT maps log-mel energies to liftered cepstra.
type DCT struct {
	basis   *mat.Dense // numCeps × numMels
	lifter  []float64
	numMels int
	numCeps int
}

// NewDCT builds the DCT-II basis and optional sinusoidal lifter.
func NewDCT(numCeps, numMels int, lifter float64) (*DCT, error) {
	basis, err := spectral.DCTMatrix(numCeps, numMels)
	if err != nil {
		return nil, err
	}
	return &DCT{
		basis:   basis,
		lifter:  spectral.Lifter(numCeps, lifter),
		numMels: numMels,
		numCeps: numCeps,
	}, nil
}

func (d *DCT) Name() string { return "dct" }

func (d *DCT) Forward(_ RunContext, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := requireRank("dct", x, 2, 3, 4); err != nil {
		return nil, err
	}
	if err := requireWidth("dct", x, d.numMels); err != nil {
		return nil, err
	}
	out := project(x, d.basis)
	if d.lifter != nil {
		for i := 0; i < out.Size(); i += d.numCeps {
			vecmath.MulBlockInPlace(out.Data[i:i+d.numCeps], d.lifter)
		}
	}
	return out, nil
}

func (d *DCT) OutputDim(int) int { return d.numCeps }

func (d *DCT) TimeDecimation() int { return 1 }
