package loss

import (
	"errors"
	"math"
	"testing"

	"github.com/codetta-ml/codetta/internal/tensor"
)

func TestCrossEntropyShape(t *testing.T) {
	const b, k, tt, c = 2, 4, 5, 7
	logits := tensor.Zeros(b, k, tt, c)
	tensor.FillRand(logits, 1)
	targets := tensor.ZerosInts(b, k, tt)
	mask := tensor.FullBools(true, b, k, tt)

	ce, err := CrossEntropy(logits, targets, mask, Options{})
	if err != nil {
		t.Fatalf("CrossEntropy: %v", err)
	}
	if !ce.Shape.Equal(tensor.Shape{b, k, tt}) {
		t.Fatalf("output shape %v, want [%d, %d, %d]", ce.Shape, b, k, tt)
	}
}

func TestCrossEntropyUniformLogits(t *testing.T) {
	// Three classes with equal logits: ce must be ln(3) whatever the target.
	logits := tensor.Zeros(1, 1, 1, 3)
	targets := tensor.NewInts(tensor.Shape{1, 1, 1}, []int32{1})
	mask := tensor.FullBools(true, 1, 1, 1)

	for _, dtype := range []DType{DTypeF32, DTypeF64} {
		ce, err := CrossEntropy(logits, targets, mask, Options{DType: dtype})
		if err != nil {
			t.Fatalf("CrossEntropy: %v", err)
		}
		want := math.Log(3)
		if got := float64(ce.Data[0]); math.Abs(got-want) > 1e-5 {
			t.Fatalf("dtype %v: ce = %g, want ln(3) = %g", dtype, got, want)
		}
	}
}

func TestCrossEntropyMaskZeroesLoss(t *testing.T) {
	const c = 4
	logits := tensor.Zeros(1, 2, 3, c)
	tensor.FillRand(logits, 7)
	// Masked positions carry garbage codes, including out-of-range ones.
	targets := tensor.NewInts(tensor.Shape{1, 2, 3}, []int32{1, -5, 9999, 2, 3, -1})
	mask := tensor.NewBools(tensor.Shape{1, 2, 3}, []bool{true, false, false, true, true, false})

	ce, err := CrossEntropy(logits, targets, mask, Options{})
	if err != nil {
		t.Fatalf("CrossEntropy: %v", err)
	}
	for i, valid := range mask.Data {
		if !valid && ce.Data[i] != 0 {
			t.Fatalf("masked position %d has nonzero loss %g", i, ce.Data[i])
		}
		if valid && ce.Data[i] <= 0 {
			t.Fatalf("valid position %d has non-positive loss %g", i, ce.Data[i])
		}
	}
}

func TestCrossEntropySoftClipBoundsLogits(t *testing.T) {
	logits := tensor.NewDense(tensor.Shape{1, 1, 1, 2}, []float32{1e6, 0})
	targets := tensor.NewInts(tensor.Shape{1, 1, 1}, []int32{1})
	mask := tensor.FullBools(true, 1, 1, 1)

	ce, err := CrossEntropy(logits, targets, mask, Options{SoftClip: 30})
	if err != nil {
		t.Fatalf("CrossEntropy: %v", err)
	}
	got := float64(ce.Data[0])
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("soft clip failed to keep the loss finite: %g", got)
	}
	// The clipped logit saturates at 30, so the loss is close to 30.
	if got < 25 || got > 31 {
		t.Fatalf("ce = %g, expected roughly 30 for a saturated logit", got)
	}
}

func TestCrossEntropyShapeMismatch(t *testing.T) {
	logits := tensor.Zeros(2, 1, 3, 4)
	targets := tensor.ZerosInts(2, 1, 2)
	mask := tensor.FullBools(true, 2, 1, 2)
	if _, err := CrossEntropy(logits, targets, mask, Options{}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}

	targets = tensor.ZerosInts(2, 1, 3)
	mask = tensor.FullBools(true, 2, 1, 2)
	if _, err := CrossEntropy(logits, targets, mask, Options{}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch for mask, got %v", err)
	}
}

func TestCrossEntropyOutOfRangeValidTarget(t *testing.T) {
	logits := tensor.Zeros(1, 1, 1, 3)
	targets := tensor.NewInts(tensor.Shape{1, 1, 1}, []int32{3})
	mask := tensor.FullBools(true, 1, 1, 1)
	if _, err := CrossEntropy(logits, targets, mask, Options{}); !errors.Is(err, ErrTargetOutOfRange) {
		t.Fatalf("expected ErrTargetOutOfRange, got %v", err)
	}
}

func TestCrossEntropyChunkingIsInvisible(t *testing.T) {
	const b, k, tt, c = 3, 2, 7, 11
	logits := tensor.Zeros(b, k, tt, c)
	tensor.FillRand(logits, 42)
	n := b * k * tt
	targets := tensor.ZerosInts(b, k, tt)
	mask := tensor.FullBools(true, b, k, tt)
	for i := 0; i < n; i++ {
		targets.Data[i] = int32(i % c)
	}

	base, err := CrossEntropy(logits, targets, mask, Options{Chunks: 1})
	if err != nil {
		t.Fatalf("CrossEntropy: %v", err)
	}
	for _, chunks := range []int{2, 4, 5, n, n + 3} {
		ce, err := CrossEntropy(logits, targets, mask, Options{Chunks: chunks})
		if err != nil {
			t.Fatalf("CrossEntropy chunks=%d: %v", chunks, err)
		}
		for i := range base.Data {
			if ce.Data[i] != base.Data[i] {
				t.Fatalf("chunks=%d: element %d differs (%g vs %g)", chunks, i, ce.Data[i], base.Data[i])
			}
		}
	}
}

func TestCrossEntropyMatchesNaive(t *testing.T) {
	const b, k, tt, c = 2, 3, 4, 9
	logits := tensor.Zeros(b, k, tt, c)
	tensor.FillRand(logits, 5)
	// Widen the logit range beyond FillRand's so the stability path matters.
	for i := range logits.Data {
		logits.Data[i] *= 500
	}
	n := b * k * tt
	targets := tensor.ZerosInts(b, k, tt)
	mask := tensor.FullBools(true, b, k, tt)
	for i := 0; i < n; i++ {
		targets.Data[i] = int32((i * 3) % c)
	}

	ce, err := CrossEntropy(logits, targets, mask, Options{DType: DTypeF64})
	if err != nil {
		t.Fatalf("CrossEntropy: %v", err)
	}
	for i := 0; i < n; i++ {
		row := logits.Data[i*c : (i+1)*c]
		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v))
		}
		want := math.Log(sum) - float64(row[targets.Data[i]])
		if got := float64(ce.Data[i]); math.Abs(got-want) > 1e-4 {
			t.Fatalf("row %d: ce = %g, naive = %g", i, got, want)
		}
	}
}
