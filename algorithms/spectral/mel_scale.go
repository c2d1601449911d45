package spectral

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
)

// MelScale converts between Hz and the HTK mel scale and builds triangular
// filterbanks on it.
type MelScale struct{}

// NewMelScale creates a new mel scale converter
func NewMelScale() *MelScale {
	return &MelScale{}
}

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// FilterBank returns a numMels × (fftSize/2+1) matrix of triangular filters
// whose edges are equally spaced in HTK mel between lowFreq and highFreq.
// Each filter is divided by its bandwidth in Hz/2 so that every row has
// roughly constant energy (Slaney normalisation).
//
// highFreq <= 0 selects sampleRate/2; larger values are clamped to it.
func (ms *MelScale) FilterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) (*mat.Dense, error) {
	if numMels <= 0 {
		return nil, common.Configf("num_mels must be positive: %d", numMels)
	}
	if fftSize <= 0 || sampleRate <= 0 {
		return nil, common.Configf("invalid fft size %d or sample rate %d", fftSize, sampleRate)
	}

	nyquist := float64(sampleRate) / 2
	if highFreq <= 0 || highFreq > nyquist {
		highFreq = nyquist
	}
	if lowFreq < 0 || lowFreq >= highFreq {
		return nil, common.Configf("fmin %.1f must lie in [0, %.1f)", lowFreq, highFreq)
	}

	numBins := fftSize/2 + 1
	fftFreqs := make([]float64, numBins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}

	melPoints := make([]float64, numMels+2)
	floats.Span(melPoints, ms.HzToMel(lowFreq), ms.HzToMel(highFreq))
	hzPoints := make([]float64, len(melPoints))
	for i, mel := range melPoints {
		hzPoints[i] = ms.MelToHz(mel)
	}

	fb := mat.NewDense(numMels, numBins, nil)
	for m := range numMels {
		left, center, right := hzPoints[m], hzPoints[m+1], hzPoints[m+2]
		enorm := 2.0 / (right - left)
		for k, f := range fftFreqs {
			lower := (f - left) / (center - left)
			upper := (right - f) / (right - center)
			if w := math.Min(lower, upper); w > 0 {
				fb.Set(m, k, w*enorm)
			}
		}
	}

	return fb, nil
}
