package features

import (
	"math"

	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// Log applies log(max(x, eps)) elementwise.
type Log struct {
	eps float64
}

// NewLog creates a log compression stage with the given floor.
func NewLog(eps float64) *Log {
	return &Log{eps: eps}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Forward(_ RunContext, x *tensor.Tensor) (*tensor.Tensor, error) {
	out := tensor.New(x.Shape...)
	for i, v := range x.Data {
		out.Data[i] = math.Log(math.Max(v, l.eps))
	}
	return out, nil
}

func (l *Log) OutputDim(in int) int { return in }

func (l *Log) TimeDecimation() int { return 1 }
