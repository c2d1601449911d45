package features

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/internal/testutil"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

func mustTensor(t *testing.T, data []float64, shape ...int) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromData(data, shape...)
	if err != nil {
		t.Fatal(err)
	}
	return x
}

func TestLogFloorsAtEps(t *testing.T) {
	t.Parallel()

	x := mustTensor(t, []float64{0, -1, 1, math.E}, 1, 2, 2)
	out, err := NewLog(1e-10).Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, out.Data, []float64{math.Log(1e-10), math.Log(1e-10), 0, 1}, 1e-12)
	if x.Data[0] != 0 {
		t.Fatal("input modified")
	}
}

func TestAbs(t *testing.T) {
	t.Parallel()

	x := mustTensor(t, []float64{-1, 2, -3, 0}, 1, 2, 2)
	out, err := Abs{}.Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, out.Data, []float64{1, 2, 3, 0}, 0)
}

func TestCMVN(t *testing.T) {
	t.Parallel()

	data := make([]float64, 0, 3*40)
	for r := range 3 {
		data = append(data, testutil.DeterministicNoise(int64(r+7), 3, 40)...)
	}
	x := mustTensor(t, data, 1, 3, 40)

	out, err := NewCMVN(true, true, common.Epsilon).Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	for r := range 3 {
		mean, std := common.MeanStd(out.Data[r*40 : (r+1)*40])
		if math.Abs(mean) > 1e-12 || math.Abs(std-1) > 1e-12 {
			t.Fatalf("frame %d: mean=%v std=%v", r, mean, std)
		}
	}

	meanOnly, err := NewCMVN(true, false, common.Epsilon).Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	_, std := common.MeanStd(meanOnly.Data[:40])
	_, want := common.MeanStd(x.Data[:40])
	if math.Abs(std-want) > 1e-12 {
		t.Fatalf("variance should be untouched: %v vs %v", std, want)
	}
}

func TestCMVNConstantFrameStaysFinite(t *testing.T) {
	t.Parallel()

	x := mustTensor(t, []float64{5, 5, 5, 5, 5}, 1, 1, 5)
	out, err := NewCMVN(true, true, common.Epsilon).Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireFinite(t, out.Data)
	testutil.RequireSliceNearlyEqual(t, out.Data, make([]float64, 5), 0)
}

func TestSpecAugmentPassThrough(t *testing.T) {
	t.Parallel()

	x := mustTensor(t, testutil.Ramp(20, 10, 1, 0.1), 1, 20, 10)

	off, err := NewSpecAugment(SpecAugmentConfig{Prob: 1, MaskBand: 5, MaskStep: 5, NumBands: 2, NumSteps: 2})
	if err != nil {
		t.Fatal(err)
	}
	out, err := off.Forward(RunContext{}, x)
	if err != nil || out != x {
		t.Fatalf("inference pass should return the input unchanged: %v", err)
	}

	zero, err := NewSpecAugment(SpecAugmentConfig{Prob: 0, MaskBand: 5, MaskStep: 5, NumBands: 2, NumSteps: 2})
	if err != nil {
		t.Fatal(err)
	}
	out, err = zero.Forward(RunContext{Training: true, Rand: rand.New(rand.NewPCG(1, 2))}, x)
	if err != nil || out != x {
		t.Fatalf("p=0 should return the input unchanged: %v", err)
	}
}

func TestSpecAugmentMasks(t *testing.T) {
	t.Parallel()

	aug, err := NewSpecAugment(SpecAugmentConfig{Prob: 1, MaskBand: 4, MaskStep: 6, NumBands: 2, NumSteps: 2})
	if err != nil {
		t.Fatal(err)
	}
	x := mustTensor(t, testutil.Ramp(2*30, 16, 1, 0.01), 2, 30, 16)
	orig := x.Clone()

	run := func(seed uint64) *tensor.Tensor {
		out, err := aug.Forward(RunContext{Training: true, Rand: rand.New(rand.NewPCG(seed, seed))}, x)
		if err != nil {
			t.Fatal(err)
		}
		return out
	}

	a, b := run(42), run(42)
	if !slices.Equal(a.Data, b.Data) {
		t.Fatal("same seed should give the same masks")
	}
	if !slices.Equal(x.Data, orig.Data) {
		t.Fatal("input modified")
	}
	if !slices.Equal(a.Shape, x.Shape) {
		t.Fatalf("shape = %v", a.Shape)
	}
	for i, v := range a.Data {
		if v != 0 && v != x.Data[i] {
			t.Fatalf("element %d changed to %v, want 0 or %v", i, v, x.Data[i])
		}
	}
}

func TestSpecAugmentErrors(t *testing.T) {
	t.Parallel()

	aug, err := NewSpecAugment(SpecAugmentConfig{Prob: 1, MaskBand: 4, MaskStep: 4, NumBands: 1, NumSteps: 1})
	if err != nil {
		t.Fatal(err)
	}
	rc := RunContext{Training: true, Rand: rand.New(rand.NewPCG(1, 1))}

	if _, err := aug.Forward(rc, tensor.New(1, 2, 10, 8)); !errors.Is(err, common.ErrUnsupportedShape) {
		t.Fatalf("rank 4 err = %v", err)
	}
	if _, err := aug.Forward(RunContext{Training: true}, tensor.New(1, 10, 8)); !errors.Is(err, common.ErrConfig) {
		t.Fatalf("missing rand err = %v", err)
	}
	if _, err := NewSpecAugment(SpecAugmentConfig{Prob: 2}); !errors.Is(err, common.ErrConfig) {
		t.Fatalf("prob err = %v", err)
	}
}

func TestSplice(t *testing.T) {
	t.Parallel()

	s, err := NewSplice(1, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	x := mustTensor(t, []float64{0, 1, 2, 3, 4}, 1, 5, 1)

	out, err := s.Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(out.Shape, []int{1, 2, 3}) {
		t.Fatalf("shape = %v, want [1 2 3]", out.Shape)
	}
	testutil.RequireSliceNearlyEqual(t, out.Data, []float64{0, 0, 1, 1, 2, 3}, 0)

	if s.OutputDim(40) != 120 || s.TimeDecimation() != 2 {
		t.Fatalf("dim=%d rate=%d", s.OutputDim(40), s.TimeDecimation())
	}
}

func TestSpliceNoContext(t *testing.T) {
	t.Parallel()

	s, err := NewSplice(0, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	x := mustTensor(t, testutil.Ramp(7, 2, 0, 1), 1, 7, 2)
	out, err := s.Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	// frames 0 and 3 of the first 6
	testutil.RequireSliceNearlyEqual(t, out.Data, []float64{0, 0, 3, 3}, 0)
}

func TestDeltaRamp(t *testing.T) {
	t.Parallel()

	const frames, dim = 10, 2
	d, err := NewDelta(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	x := mustTensor(t, testutil.Ramp(frames, dim, 2, 0.5), 1, frames, dim)

	out, err := d.Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(out.Shape, []int{1, frames, 3 * dim}) {
		t.Fatalf("shape = %v", out.Shape)
	}

	for tt := range frames {
		row := out.Data[tt*3*dim : (tt+1)*3*dim]
		testutil.RequireSliceNearlyEqual(t, row[:dim], x.Data[tt*dim:(tt+1)*dim], 0)
		if tt >= 2 && tt < frames-2 {
			testutil.RequireSliceNearlyEqual(t, row[dim:2*dim], []float64{0.5, 0.5}, 1e-12)
		}
		if tt >= 4 && tt < frames-4 {
			testutil.RequireSliceNearlyEqual(t, row[2*dim:], []float64{0, 0}, 1e-12)
		}
	}

	// replicated edges: (1·(x1-x0) + 2·(x2-x0)) / 10
	if got := out.Data[dim]; math.Abs(got-0.25) > 1e-12 {
		t.Fatalf("edge delta = %v, want 0.25", got)
	}
}

func TestDCT(t *testing.T) {
	t.Parallel()

	d, err := NewDCT(4, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	x := mustTensor(t, []float64{1, 1, 1, 1, 1, 1, 1, 1}, 1, 1, 8)
	out, err := d.Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, out.Data, []float64{math.Sqrt(8), 0, 0, 0}, 1e-12)

	lift, err := NewDCT(4, 8, 22)
	if err != nil {
		t.Fatal(err)
	}
	out, err = lift.Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	want := math.Sqrt(8) * (1 + 11*math.Sin(math.Pi/22))
	if math.Abs(out.Data[0]-want) > 1e-9 {
		t.Fatalf("liftered c0 = %v, want %v", out.Data[0], want)
	}

	if _, err := d.Forward(RunContext{}, tensor.New(1, 1, 7)); !errors.Is(err, common.ErrShape) {
		t.Fatalf("width err = %v", err)
	}
}

func TestMelShapeChecks(t *testing.T) {
	t.Parallel()

	m, err := NewMel(512, 16000, 40, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Forward(RunContext{}, tensor.New(10, 257)); !errors.Is(err, common.ErrShape) {
		t.Fatalf("rank 2 err = %v", err)
	}
	if _, err := m.Forward(RunContext{}, tensor.New(1, 10, 256)); !errors.Is(err, common.ErrShape) {
		t.Fatalf("width err = %v", err)
	}
	out, err := m.Forward(RunContext{}, tensor.New(2, 3, 10, 257))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(out.Shape, []int{2, 3, 10, 40}) {
		t.Fatalf("shape = %v", out.Shape)
	}
}

func TestGlobalCMVN(t *testing.T) {
	t.Parallel()

	stats, err := ReadKaldiMatrix(strings.NewReader("cmvn  [\n  2 4 2\n  4 10 0 ]\n"))
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGlobalCMVN(stats, true, true, common.Epsilon)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.mean) != 2 {
		t.Fatalf("dim = %d", len(g.mean))
	}

	x := mustTensor(t, []float64{1, 2, 3, 4}, 1, 2, 2)
	out, err := g.Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, out.Data, []float64{0, 0, 2, 2}, 1e-12)

	if _, err := ReadKaldiMatrix(strings.NewReader("[ 1 2\n 3 ]")); !errors.Is(err, common.ErrConfig) {
		t.Fatalf("ragged err = %v", err)
	}
}

func TestWaveformStages(t *testing.T) {
	t.Parallel()

	x := mustTensor(t, []float64{2, 4, 6, 8, 1, 1, 1, 1}, 2, 4)

	pe, err := NewPreEmphasis(0.5)
	if err != nil {
		t.Fatal(err)
	}
	out, err := pe.Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, out.Data, []float64{1, 3, 4, 5, 0.5, 0.5, 0.5, 0.5}, 1e-12)

	out, err = NewDCRemoval().Forward(RunContext{}, x)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, out.Data, []float64{-3, -1, 1, 3, 0, 0, 0, 0}, 1e-12)

	if _, err := NewDCRemoval().Forward(RunContext{}, tensor.New(1, 2, 3, 4)); !errors.Is(err, common.ErrShape) {
		t.Fatalf("rank err = %v", err)
	}
}
