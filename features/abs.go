package features

import (
	"math"

	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// Abs takes the elementwise absolute value.
type Abs struct{}

func (Abs) Name() string { return "abs" }

func (Abs) Forward(_ RunContext, x *tensor.Tensor) (*tensor.Tensor, error) {
	out := tensor.New(x.Shape...)
	for i, v := range x.Data {
		out.Data[i] = math.Abs(v)
	}
	return out, nil
}

func (Abs) OutputDim(in int) int { return in }

func (Abs) TimeDecimation() int { return 1 }
