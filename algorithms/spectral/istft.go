package spectral

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/logging"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// ISTFT is the synthesis direction: it inverts spectra produced by an STFT
// with the same Config.
type ISTFT struct {
	*engine
	synthesis mat.Matrix
	winSq     []float64
}

// NewISTFT builds a synthesis engine.
func NewISTFT(cfg Config, opts ...Option) (*ISTFT, error) {
	e, err := newEngine("istft", cfg, true, opts)
	if err != nil {
		return nil, err
	}
	s := &ISTFT{engine: e, winSq: e.window.Squared()}
	if e.kernel != nil {
		s.synthesis = e.kernel.M.T()
	}
	return s, nil
}

// Inverse reconstructs N×S' waveforms from F×T or N×F×T spectra, where
// S' = (T-1)·hop + frame_len. One-sided input is completed by conjugate
// symmetry before synthesis.
func (s *ISTFT) Inverse(spec *Spectra) (*tensor.Tensor, error) {
	re, im, err := spec.Parts()
	if err != nil {
		s.logger.Error(err, "iSTFT input rejected")
		return nil, err
	}
	if re.Rank() != 2 && re.Rank() != 3 {
		err := common.Shapef("expect 2D/3D tensor, but got %dD", re.Rank())
		s.logger.Error(err, "iSTFT input rejected")
		return nil, err
	}
	if re.Dim(-2) != s.numBins {
		err := common.Shapef("expect %d frequency bins, but got %d", s.numBins, re.Dim(-2))
		s.logger.Error(err, "iSTFT input rejected")
		return nil, err
	}

	numFrames := re.Dim(-1)
	if numFrames == 0 {
		err := common.Shapef("expect at least one frame, but got %v", re.Shape)
		s.logger.Error(err, "iSTFT input rejected")
		return nil, err
	}
	numUtts := re.Lead()
	frameLen, hop := s.cfg.FrameLen, s.cfg.FrameHop
	numSamples := (numFrames-1)*hop + frameLen
	plane := s.numBins * numFrames

	out := tensor.New(numUtts, numSamples)

	// overlap-added window², shared by every utterance
	norm := make([]float64, numSamples)
	for t := range numFrames {
		for n := range frameLen {
			norm[t*hop+n] += s.winSq[n]
		}
	}

	for u := range numUtts {
		fullRe, fullIm := s.mirror(re.Data[u*plane:(u+1)*plane], im.Data[u*plane:(u+1)*plane], numFrames)

		var frames [][]float64
		if s.kernel != nil {
			frames = s.projectRow(fullRe, fullIm, numFrames)
		} else if frames, err = s.ifftRow(fullRe, fullIm, numFrames); err != nil {
			s.logger.Error(err, "iSTFT synthesis failed", logging.Fields{"utterance": u})
			return nil, err
		}

		y := out.Data[u*numSamples : (u+1)*numSamples]
		for t, frame := range frames {
			for n, v := range frame {
				y[t*hop+n] += v
			}
		}
		for i, d := range norm {
			if d != 0 {
				y[i] /= d
			}
		}
	}

	return out, nil
}

// mirror expands F×T planes to B×T. Bins above B/2 take the conjugate of
// bin B-k.
func (s *ISTFT) mirror(re, im []float64, numFrames int) ([]float64, []float64) {
	b := s.fftSize
	if s.numBins == b {
		return re, im
	}

	fullRe := make([]float64, b*numFrames)
	fullIm := make([]float64, b*numFrames)
	copy(fullRe, re)
	copy(fullIm, im)
	for k := s.numBins; k < b; k++ {
		src := (b - k) * numFrames
		dst := k * numFrames
		for t := range numFrames {
			fullRe[dst+t] = re[src+t]
			fullIm[dst+t] = -im[src+t]
		}
	}
	return fullRe, fullIm
}

// projectRow applies the transposed inverse kernel to the stacked B×T planes
// and returns windowed frames.
func (s *ISTFT) projectRow(fullRe, fullIm []float64, numFrames int) [][]float64 {
	b := s.fftSize
	stacked := make([]float64, 0, 2*b*numFrames)
	stacked = append(stacked, fullRe...)
	stacked = append(stacked, fullIm...)
	planes := mat.NewDense(2*b, numFrames, stacked)

	frameLen := s.cfg.FrameLen
	proj := mat.NewDense(frameLen, numFrames, nil)
	proj.Mul(s.synthesis, planes)

	frames := make([][]float64, numFrames)
	for t := range numFrames {
		frames[t] = mat.Col(nil, t, proj)
	}
	return frames
}

func (s *ISTFT) ifftRow(fullRe, fullIm []float64, numFrames int) ([][]float64, error) {
	b := s.fftSize
	binRe := make([]float64, b)
	binIm := make([]float64, b)

	frames := make([][]float64, numFrames)
	for t := range numFrames {
		for k := range b {
			binRe[k] = fullRe[k*numFrames+t]
			binIm[k] = fullIm[k*numFrames+t]
		}
		frame := s.fft.ComputeInverseReal(binRe, binIm, s.cfg.FrameLen)
		if err := s.window.ApplyInPlace(frame); err != nil {
			return nil, fmt.Errorf("failed to window frame %d: %w", t, err)
		}
		frames[t] = frame
	}
	return frames, nil
}
