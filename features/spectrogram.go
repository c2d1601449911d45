package features

import (
	"github.com/RyanBlaney/sonido-frontend/algorithms/spectral"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// Spectrogram computes the STFT magnitude and lays it out as N×(C)×T×F.
type Spectrogram struct {
	stft *spectral.STFT
}

// NewSpectrogram builds the analysis engine for cfg.
func NewSpectrogram(cfg spectral.Config, opts ...spectral.Option) (*Spectrogram, error) {
	stft, err := spectral.NewSTFT(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Spectrogram{stft: stft}, nil
}

func (s *Spectrogram) Name() string { return "spectrogram" }

func (s *Spectrogram) Forward(_ RunContext, x *tensor.Tensor) (*tensor.Tensor, error) {
	spec, err := s.stft.Forward(x, spectral.FormatPolar)
	if err != nil {
		return nil, err
	}
	return spec.X.SwapLast2(), nil
}

// OutputDim ignores its input: the width is the number of STFT bins.
func (s *Spectrogram) OutputDim(int) int { return s.stft.NumBins() }

func (s *Spectrogram) TimeDecimation() int { return 1 }

// NumFrames forwards to the STFT engine.
func (s *Spectrogram) NumFrames(sampleCounts []int) ([]int, error) {
	return s.stft.NumFrames(sampleCounts)
}
