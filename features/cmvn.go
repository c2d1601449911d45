package features

import (
	"math"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// CMVN normalises every frame across its feature axis.
type CMVN struct {
	normMean bool
	normVar  bool
	eps      float64
}

// NewCMVN creates a per-frame mean/variance normalisation stage. The
// standard deviation is clamped below by eps before dividing.
func NewCMVN(normMean, normVar bool, eps float64) *CMVN {
	return &CMVN{normMean: normMean, normVar: normVar, eps: eps}
}

func (c *CMVN) Name() string { return "cmvn" }

func (c *CMVN) Forward(_ RunContext, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := requireRank("cmvn", x, 2, 3, 4); err != nil {
		return nil, err
	}
	out := x.Clone()
	if !c.normMean && !c.normVar {
		return out, nil
	}

	width := x.Dim(-1)
	if width == 0 {
		return out, nil
	}
	for i := 0; i < out.Size(); i += width {
		row := out.Data[i : i+width]
		mean, std := common.MeanStd(row)
		if !c.normMean {
			mean = 0
		}
		scale := 1.0
		if c.normVar {
			scale = 1 / math.Max(std, c.eps)
		}
		for j := range row {
			row[j] = (row[j] - mean) * scale
		}
	}
	return out, nil
}

func (c *CMVN) OutputDim(in int) int { return in }

func (c *CMVN) TimeDecimation() int { return 1 }
