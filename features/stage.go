// Package features turns waveforms into acoustic features through a chain
// of stages parsed from a hyphen-delimited token string such as
// "fbank-log-cmvn".
//
// Every stage after the spectrogram treats the last axis as features and
// the second-to-last as time, so tensors flow as N×T×D or N×C×T×D.
package features

import (
	"math/rand/v2"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// RunContext carries per-call state into stages.
type RunContext struct {
	// Training enables stochastic stages such as SpecAugment.
	Training bool
	// Rand is the randomness source for stochastic stages. It is required
	// when Training is set and the pipeline contains an augmenting stage.
	Rand *rand.Rand
}

// Stage is one step of a feature pipeline.
type Stage interface {
	// Name returns the token the stage was registered under.
	Name() string
	// Forward transforms x. Implementations never modify x in place.
	Forward(rc RunContext, x *tensor.Tensor) (*tensor.Tensor, error)
	// OutputDim maps the incoming feature width to the outgoing one.
	OutputDim(in int) int
	// TimeDecimation is the factor by which the stage reduces the frame rate.
	TimeDecimation() int
}

// Framer is implemented by stages that turn samples into frames.
type Framer interface {
	NumFrames(sampleCounts []int) ([]int, error)
}

func requireRank(stage string, x *tensor.Tensor, ranks ...int) error {
	for _, r := range ranks {
		if x.Rank() == r {
			return nil
		}
	}
	return common.Shapef("%s: expect %vD tensor, but got %dD", stage, ranks, x.Rank())
}

func requireWidth(stage string, x *tensor.Tensor, want int) error {
	if got := x.Dim(-1); got != want {
		return common.Shapef("%s: expect feature dimension %d, but got %d", stage, want, got)
	}
	return nil
}

// planes splits the trailing T×D axes of x into per-matrix views.
func planes(x *tensor.Tensor) (views [][]float64, rows, cols int) {
	rows, cols = x.Dim(-2), x.Dim(-1)
	size := rows * cols
	n := x.Lead()
	views = make([][]float64, n)
	for i := range n {
		views[i] = x.Data[i*size : (i+1)*size]
	}
	return views, rows, cols
}
