// Package tensor provides the dense, row-major float64 array shared by the
// STFT engines and the feature pipeline stages.
//
// Only the handful of operations the front-end needs are provided: shape
// queries, flat indexing, slicing along the leading axis, and the
// axis swaps that move between (freq, time) and (time, freq) layouts.
package tensor

import (
	"fmt"
	"slices"
)

// Tensor is a dense row-major array. Data has exactly Size() elements.
type Tensor struct {
	Shape []int
	Data  []float64
}

// New allocates a zero-filled tensor of the given shape.
func New(shape ...int) *Tensor {
	size := 1
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("tensor: negative dimension %d in %v", d, shape))
		}
		size *= d
	}
	return &Tensor{
		Shape: slices.Clone(shape),
		Data:  make([]float64, size),
	}
}

// FromData wraps data with the given shape. The slice is not copied.
func FromData(data []float64, shape ...int) (*Tensor, error) {
	size := 1
	for _, d := range shape {
		size *= d
	}
	if size != len(data) {
		return nil, fmt.Errorf("tensor: shape %v needs %d elements, got %d", shape, size, len(data))
	}
	return &Tensor{Shape: slices.Clone(shape), Data: data}, nil
}

// FromRows stacks equal-length rows into a 2-D tensor.
func FromRows(rows [][]float64) (*Tensor, error) {
	if len(rows) == 0 {
		return New(0, 0), nil
	}
	width := len(rows[0])
	t := New(len(rows), width)
	for i, r := range rows {
		if len(r) != width {
			return nil, fmt.Errorf("tensor: row %d has %d elements, want %d", i, len(r), width)
		}
		copy(t.Data[i*width:], r)
	}
	return t, nil
}

// Rank returns the number of axes.
func (t *Tensor) Rank() int {
	return len(t.Shape)
}

// Size returns the total element count.
func (t *Tensor) Size() int {
	return len(t.Data)
}

// Dim returns the length of axis i. Negative i counts from the end.
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.Shape)
	}
	return t.Shape[i]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Shape: slices.Clone(t.Shape),
		Data:  slices.Clone(t.Data),
	}
}

// Lead returns the product of all axes except the last two. A rank-2 tensor
// has a lead of 1.
func (t *Tensor) Lead() int {
	n := 1
	for _, d := range t.Shape[:max(len(t.Shape)-2, 0)] {
		n *= d
	}
	return n
}

// Index returns the flat offset of the given coordinates.
func (t *Tensor) Index(idx ...int) int {
	if len(idx) != len(t.Shape) {
		panic(fmt.Sprintf("tensor: %d indices for rank %d", len(idx), len(t.Shape)))
	}
	off := 0
	for i, v := range idx {
		off = off*t.Shape[i] + v
	}
	return off
}

// At returns the element at the given coordinates.
func (t *Tensor) At(idx ...int) float64 {
	return t.Data[t.Index(idx...)]
}

// Set stores v at the given coordinates.
func (t *Tensor) Set(v float64, idx ...int) {
	t.Data[t.Index(idx...)] = v
}

// Stack joins tensors of identical shape along a new leading axis.
func Stack(parts []*Tensor) (*Tensor, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("tensor: nothing to stack")
	}
	shape := parts[0].Shape
	out := New(append([]int{len(parts)}, shape...)...)
	stride := parts[0].Size()
	for i, p := range parts {
		if !slices.Equal(p.Shape, shape) {
			return nil, fmt.Errorf("tensor: stack part %d has shape %v, want %v", i, p.Shape, shape)
		}
		copy(out.Data[i*stride:], p.Data)
	}
	return out, nil
}

// SwapLast2 returns a copy with the last two axes transposed.
func (t *Tensor) SwapLast2() *Tensor {
	r := len(t.Shape)
	if r < 2 {
		return t.Clone()
	}
	rows, cols := t.Shape[r-2], t.Shape[r-1]
	shape := slices.Clone(t.Shape)
	shape[r-2], shape[r-1] = cols, rows
	out := &Tensor{Shape: shape, Data: make([]float64, len(t.Data))}
	plane := rows * cols
	for b := 0; b < t.Lead(); b++ {
		src := t.Data[b*plane : (b+1)*plane]
		dst := out.Data[b*plane : (b+1)*plane]
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				dst[j*rows+i] = src[i*cols+j]
			}
		}
	}
	return out
}

// String summarises the shape.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.Shape)
}
