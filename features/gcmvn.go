package features

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// GlobalCMVN normalises features with a fixed mean and standard deviation
// estimated offline over a training set.
type GlobalCMVN struct {
	mean     []float64
	std      []float64
	normMean bool
	normVar  bool
	eps      float64
}

// NewGlobalCMVN derives mean and std from Kaldi accumulated stats: a
// 2×(D+1) matrix whose first row holds per-dimension sums followed by the
// frame count and whose second row holds per-dimension sums of squares.
func NewGlobalCMVN(stats *mat.Dense, normMean, normVar bool, eps float64) (*GlobalCMVN, error) {
	rows, cols := stats.Dims()
	if rows != 2 || cols < 2 {
		return nil, common.Configf("gcmvn stats must be 2×(D+1), got %d×%d", rows, cols)
	}
	count := stats.At(0, cols-1)
	if count <= 0 {
		return nil, common.Configf("gcmvn stats have non-positive frame count %v", count)
	}

	dim := cols - 1
	g := &GlobalCMVN{
		mean:     make([]float64, dim),
		std:      make([]float64, dim),
		normMean: normMean,
		normVar:  normVar,
		eps:      eps,
	}
	for d := range dim {
		m := stats.At(0, d) / count
		v := stats.At(1, d)/count - m*m
		g.mean[d] = m
		g.std[d] = math.Sqrt(math.Max(v, 0))
	}
	return g, nil
}

// LoadGlobalCMVN reads Kaldi text-format stats from path.
func LoadGlobalCMVN(path string, normMean, normVar bool, eps float64) (*GlobalCMVN, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gcmvn: open %q: %w", path, err)
	}
	defer f.Close()

	stats, err := ReadKaldiMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("gcmvn: parse %q: %w", path, err)
	}
	return NewGlobalCMVN(stats, normMean, normVar, eps)
}

// ReadKaldiMatrix parses a Kaldi text matrix, optionally preceded by a
// key:
//
//	[ 1 2 3
//	  4 5 6 ]
func ReadKaldiMatrix(r io.Reader) (*mat.Dense, error) {
	var (
		rows [][]float64
		open bool
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if idx := strings.Index(line, "["); idx >= 0 {
			line = line[idx+1:]
			open = true
		}
		closed := false
		if idx := strings.Index(line, "]"); idx >= 0 {
			line = line[:idx]
			closed = true
		}
		if !open {
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			row := make([]float64, len(fields))
			for i, tok := range fields {
				v, err := strconv.ParseFloat(tok, 64)
				if err != nil {
					return nil, common.Configf("bad matrix value %q", tok)
				}
				row[i] = v
			}
			if len(rows) > 0 && len(row) != len(rows[0]) {
				return nil, common.Configf("ragged matrix: row %d has %d values, want %d", len(rows), len(row), len(rows[0]))
			}
			rows = append(rows, row)
		}
		if closed {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, common.Configf("no matrix found")
	}

	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m, nil
}

func (g *GlobalCMVN) Name() string { return "gcmvn" }

func (g *GlobalCMVN) Forward(_ RunContext, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := requireRank("gcmvn", x, 2, 3, 4); err != nil {
		return nil, err
	}
	if err := requireWidth("gcmvn", x, len(g.mean)); err != nil {
		return nil, err
	}

	out := x.Clone()
	width := len(g.mean)
	for i := 0; i < out.Size(); i += width {
		row := out.Data[i : i+width]
		for d := range row {
			if g.normMean {
				row[d] -= g.mean[d]
			}
			if g.normVar {
				row[d] /= math.Max(g.std[d], g.eps)
			}
		}
	}
	return out, nil
}

func (g *GlobalCMVN) OutputDim(in int) int { return in }

func (g *GlobalCMVN) TimeDecimation() int { return 1 }
