package features

import (
	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// Splice stacks neighbouring frames onto each frame and optionally keeps
// only every ds_rate-th result.
type Splice struct {
	lctx, rctx int
	rate       int
}

// NewSplice creates a splicing stage. Negative contexts are treated as zero.
func NewSplice(lctx, rctx, dsRate int) (*Splice, error) {
	if dsRate < 1 {
		return nil, common.Configf("ds_rate must be at least 1: %d", dsRate)
	}
	return &Splice{lctx: max(lctx, 0), rctx: max(rctx, 0), rate: dsRate}, nil
}

func (s *Splice) Name() string { return "splice" }

func (s *Splice) Forward(_ RunContext, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := requireRank("splice", x, 2, 3, 4); err != nil {
		return nil, err
	}

	views, numFrames, dim := planes(x)
	usable := numFrames - numFrames%s.rate
	outFrames := usable / s.rate
	width := s.OutputDim(dim)

	shape := append([]int{}, x.Shape...)
	shape[len(shape)-2] = outFrames
	shape[len(shape)-1] = width
	out := tensor.New(shape...)

	for i, src := range views {
		dst := out.Data[i*outFrames*width : (i+1)*outFrames*width]
		for o := range outFrames {
			t := o * s.rate
			row := dst[o*width : (o+1)*width]
			for j, c := 0, -s.lctx; c <= s.rctx; j, c = j+1, c+1 {
				idx := common.ClampInt(t+c, 0, usable-1)
				copy(row[j*dim:(j+1)*dim], src[idx*dim:(idx+1)*dim])
			}
		}
	}
	return out, nil
}

func (s *Splice) OutputDim(in int) int { return in * (1 + s.lctx + s.rctx) }

func (s *Splice) TimeDecimation() int { return s.rate }
