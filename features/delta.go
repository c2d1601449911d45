package features

import (
	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// Delta appends regression derivatives of the features. Order k is
// computed from order k-1, with the first and last frames replicated at
// the edges.
type Delta struct {
	ctx   int
	order int
	denom float64
}

// NewDelta creates a delta stage with half-window ctx.
func NewDelta(ctx, order int) (*Delta, error) {
	if ctx < 1 {
		return nil, common.Configf("delta_ctx must be at least 1: %d", ctx)
	}
	if order < 0 {
		return nil, common.Configf("delta_order must not be negative: %d", order)
	}
	denom := 0.0
	for i := 1; i <= ctx; i++ {
		denom += float64(i * i)
	}
	return &Delta{ctx: ctx, order: order, denom: 2 * denom}, nil
}

func (d *Delta) Name() string { return "delta" }

func (d *Delta) Forward(_ RunContext, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := requireRank("delta", x, 2, 3, 4); err != nil {
		return nil, err
	}

	views, numFrames, dim := planes(x)
	width := d.OutputDim(dim)

	shape := append([]int{}, x.Shape...)
	shape[len(shape)-1] = width
	out := tensor.New(shape...)

	prev := make([]float64, numFrames*dim)
	next := make([]float64, numFrames*dim)
	for i, src := range views {
		dst := out.Data[i*numFrames*width : (i+1)*numFrames*width]
		copy(prev, src)
		d.place(dst, prev, 0, numFrames, dim, width)
		for k := 1; k <= d.order; k++ {
			d.regress(next, prev, numFrames, dim)
			d.place(dst, next, k, numFrames, dim, width)
			prev, next = next, prev
		}
	}
	return out, nil
}

// regress writes the delta of src into dst.
func (d *Delta) regress(dst, src []float64, numFrames, dim int) {
	clear(dst)
	if numFrames == 0 {
		return
	}
	for t := range numFrames {
		row := dst[t*dim : (t+1)*dim]
		for i := 1; i <= d.ctx; i++ {
			ahead := common.ClampInt(t+i, 0, numFrames-1) * dim
			behind := common.ClampInt(t-i, 0, numFrames-1) * dim
			w := float64(i)
			for f := range row {
				row[f] += w * (src[ahead+f] - src[behind+f])
			}
		}
		for f := range row {
			row[f] /= d.denom
		}
	}
}

// place copies a T×dim block into slot k of the T×width output.
func (d *Delta) place(dst, block []float64, k, numFrames, dim, width int) {
	for t := range numFrames {
		copy(dst[t*width+k*dim:t*width+(k+1)*dim], block[t*dim:(t+1)*dim])
	}
}

func (d *Delta) OutputDim(in int) int { return in * (1 + d.order) }

func (d *Delta) TimeDecimation() int { return 1 }
