package spectral

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
)

// DCTMatrix returns the first numCeps rows of the orthonormal DCT-II over
// numInputs points:
//
//	D[k][n] = s_k · cos(π/N · (n + 0.5) · k),  s_0 = sqrt(1/N), s_k = sqrt(2/N)
func DCTMatrix(numCeps, numInputs int) (*mat.Dense, error) {
	if numInputs <= 0 {
		return nil, common.Configf("dct input size must be positive: %d", numInputs)
	}
	if numCeps <= 0 || numCeps > numInputs {
		return nil, common.Configf("num_ceps must lie in [1, %d]: %d", numInputs, numCeps)
	}

	n := float64(numInputs)
	d := mat.NewDense(numCeps, numInputs, nil)
	for k := range numCeps {
		scale := math.Sqrt(2.0 / n)
		if k == 0 {
			scale = math.Sqrt(1.0 / n)
		}
		for i := range numInputs {
			d.Set(k, i, scale*math.Cos(math.Pi/n*(float64(i)+0.5)*float64(k)))
		}
	}
	return d, nil
}

// Lifter returns the sinusoidal cepstral lifter 1 + (L/2)·sin(πk/L) for
// k = 1..numCeps, or nil when lifter is zero.
func Lifter(numCeps int, lifter float64) []float64 {
	if lifter == 0 {
		return nil
	}
	w := make([]float64, numCeps)
	for i := range w {
		k := float64(i + 1)
		w[i] = 1 + lifter/2*math.Sin(math.Pi*k/lifter)
	}
	return w
}
