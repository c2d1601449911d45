package filters

import (
	"github.com/cwbudde/algo-vecmath"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
)

// DCRemoval removes the DC component of an utterance by subtracting its
// mean. Unlike a recursive DC blocker it has no settling time, which suits
// whole-utterance feature extraction.
type DCRemoval struct{}

// NewDCRemoval creates a new DC removal filter.
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{}
}

// ProcessBuffer returns input with its mean removed.
func (dc *DCRemoval) ProcessBuffer(input []float64) []float64 {
	out := make([]float64, len(input))
	copy(out, input)
	dc.ProcessInPlace(out)
	return out
}

// ProcessInPlace subtracts the mean of buf from every sample.
func (dc *DCRemoval) ProcessInPlace(buf []float64) {
	if len(buf) == 0 {
		return
	}
	offset := make([]float64, len(buf))
	mean := common.Mean(buf)
	for i := range offset {
		offset[i] = -mean
	}
	vecmath.AddBlockInPlace(buf, offset)
}
