package tensor

import (
	"math"
	"testing"
)

func TestShapeNumel(t *testing.T) {
	cases := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{4}, 4},
		{Shape{2, 3, 5}, 30},
		{Shape{2, 0, 5}, 0},
	}
	for _, c := range cases {
		if got := c.shape.Numel(); got != c.want {
			t.Fatalf("Numel(%v) = %d, want %d", c.shape, got, c.want)
		}
	}
}

func TestNewDenseLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on mismatched data length")
		}
	}()
	NewDense(Shape{2, 3}, make([]float32, 5))
}

func TestReshapePreservesData(t *testing.T) {
	a := NewDense(Shape{2, 6}, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11})
	b := a.Reshape(3, 4)
	if !b.Shape.Equal(Shape{3, 4}) {
		t.Fatalf("unexpected shape %v", b.Shape)
	}
	b.Data[0] = 42
	if a.Data[0] != 42 {
		t.Fatal("reshape should alias the underlying data")
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	x := []float32{1, 2, 3, 4}
	Softmax(x)
	var sum float64
	for _, v := range x {
		sum += float64(v)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Fatalf("softmax sum %g, want 1", sum)
	}
	for i := 1; i < len(x); i++ {
		if x[i] <= x[i-1] {
			t.Fatal("softmax should preserve ordering")
		}
	}
}

func TestSoftmaxLargeValues(t *testing.T) {
	x := []float32{1e6, 1e6 - 1}
	Softmax(x)
	for _, v := range x {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("softmax overflowed: %v", x)
		}
	}
}

func TestLengthsToMask(t *testing.T) {
	mask := LengthsToMask([]int{3, 5}, 0)
	if !mask.Shape.Equal(Shape{2, 5}) {
		t.Fatalf("unexpected mask shape %v", mask.Shape)
	}
	want := []bool{true, true, true, false, false, true, true, true, true, true}
	for i, v := range want {
		if mask.Data[i] != v {
			t.Fatalf("mask[%d] = %v, want %v", i, mask.Data[i], v)
		}
	}
}

func TestLengthsToMaskExplicitWidth(t *testing.T) {
	mask := LengthsToMask([]int{4}, 2)
	if !mask.Shape.Equal(Shape{1, 2}) {
		t.Fatalf("unexpected mask shape %v", mask.Shape)
	}
	if !mask.Data[0] || !mask.Data[1] {
		t.Fatal("length beyond maxLen should clamp, leaving all columns valid")
	}
}

func TestLengthsToMaskAllZero(t *testing.T) {
	mask := LengthsToMask([]int{0, 0}, 0)
	if !mask.Shape.Equal(Shape{2, 1}) {
		t.Fatalf("zero-length batch should yield one column, got %v", mask.Shape)
	}
	for i, v := range mask.Data {
		if v {
			t.Fatalf("mask[%d] should be padding", i)
		}
	}
}
