package common

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Epsilon is the machine epsilon of float64, the working type of every stage.
var Epsilon = math.Nextafter(1, 2) - 1

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// MeanStd returns the mean and the unbiased standard deviation. Slices with
// fewer than two elements report a zero deviation instead of NaN.
func MeanStd(data []float64) (mean, std float64) {
	switch len(data) {
	case 0:
		return 0, 0
	case 1:
		return data[0], 0
	}
	return stat.MeanStdDev(data, nil)
}

// ClampInt constrains an index to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
