package features

import (
	"github.com/RyanBlaney/sonido-frontend/algorithms/filters"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// PreEmphasis applies first-order pre-emphasis to every waveform row of an
// N×S or N×C×S tensor. It must precede the spectrogram.
type PreEmphasis struct {
	filter *filters.PreEmphasis
}

// NewPreEmphasis creates the waveform pre-emphasis stage.
func NewPreEmphasis(coefficient float64) (*PreEmphasis, error) {
	f, err := filters.NewPreEmphasis(coefficient)
	if err != nil {
		return nil, err
	}
	return &PreEmphasis{filter: f}, nil
}

func (p *PreEmphasis) Name() string { return "preemph" }

func (p *PreEmphasis) Forward(_ RunContext, x *tensor.Tensor) (*tensor.Tensor, error) {
	return mapRows("preemph", x, p.filter.ProcessBuffer)
}

func (p *PreEmphasis) OutputDim(in int) int { return in }

func (p *PreEmphasis) TimeDecimation() int { return 1 }

// DCRemoval subtracts each waveform row's mean.
type DCRemoval struct {
	filter *filters.DCRemoval
}

// NewDCRemoval creates the waveform DC removal stage.
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{filter: filters.NewDCRemoval()}
}

func (d *DCRemoval) Name() string { return "dcremove" }

func (d *DCRemoval) Forward(_ RunContext, x *tensor.Tensor) (*tensor.Tensor, error) {
	return mapRows("dcremove", x, d.filter.ProcessBuffer)
}

func (d *DCRemoval) OutputDim(in int) int { return in }

func (d *DCRemoval) TimeDecimation() int { return 1 }

func mapRows(stage string, x *tensor.Tensor, fn func([]float64) []float64) (*tensor.Tensor, error) {
	if err := requireRank(stage, x, 2, 3); err != nil {
		return nil, err
	}
	out := tensor.New(x.Shape...)
	n := out.Dim(-1)
	if n == 0 {
		return out, nil
	}
	for i := 0; i < out.Size(); i += n {
		copy(out.Data[i:i+n], fn(x.Data[i:i+n]))
	}
	return out, nil
}
