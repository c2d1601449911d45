package features

import (
	"fmt"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// SpecAugmentConfig holds the masking parameters.
type SpecAugmentConfig struct {
	Prob     float64 // probability of augmenting an utterance
	WrapStep int     // time-warp step, accepted but not applied
	MaskBand int     // maximum frequency mask width
	MaskStep int     // maximum time mask width
	NumBands int     // frequency masks per utterance
	NumSteps int     // time masks per utterance
}

// SpecAugment zeroes random frequency bands and time spans while training.
type SpecAugment struct {
	cfg SpecAugmentConfig
}

// NewSpecAugment creates the augmentation stage.
func NewSpecAugment(cfg SpecAugmentConfig) (*SpecAugment, error) {
	if cfg.Prob < 0 || cfg.Prob > 1 {
		return nil, common.Configf("aug_prob must be in [0, 1]: %v", cfg.Prob)
	}
	if cfg.MaskBand < 0 || cfg.MaskStep < 0 || cfg.NumBands < 0 || cfg.NumSteps < 0 {
		return nil, common.Configf("SpecAugment mask parameters must not be negative: %+v", cfg)
	}
	return &SpecAugment{cfg: cfg}, nil
}

func (s *SpecAugment) Name() string { return "aug" }

// Forward returns x itself outside training or when the probability is zero.
// Otherwise every utterance independently draws whether it is masked.
func (s *SpecAugment) Forward(rc RunContext, x *tensor.Tensor) (*tensor.Tensor, error) {
	if !rc.Training || s.cfg.Prob == 0 {
		return x, nil
	}
	if x.Rank() == 4 {
		return nil, fmt.Errorf("%w: aug: multi-channel input %v", common.ErrUnsupportedShape, x.Shape)
	}
	if err := requireRank("aug", x, 3); err != nil {
		return nil, err
	}
	if rc.Rand == nil {
		return nil, common.Configf("aug: training run needs a random source")
	}

	out := x.Clone()
	views, numFrames, numBins := planes(out)
	for _, m := range views {
		if rc.Rand.Float64() >= s.cfg.Prob {
			continue
		}
		for range s.cfg.NumBands {
			width, start := maskSpan(rc, s.cfg.MaskBand, numBins)
			for t := range numFrames {
				clear(m[t*numBins+start : t*numBins+start+width])
			}
		}
		for range s.cfg.NumSteps {
			width, start := maskSpan(rc, s.cfg.MaskStep, numFrames)
			clear(m[start*numBins : (start+width)*numBins])
		}
	}
	return out, nil
}

// maskSpan draws a width in [0, maxWidth] capped at size and a start
// offset in [0, size-width].
func maskSpan(rc RunContext, maxWidth, size int) (width, start int) {
	width = min(rc.Rand.IntN(maxWidth+1), size)
	start = rc.Rand.IntN(size - width + 1)
	return width, start
}

func (s *SpecAugment) OutputDim(in int) int { return in }

func (s *SpecAugment) TimeDecimation() int { return 1 }
