package tensor

import (
	"fmt"
	"math/rand"
	"strings"
)

// Shape describes the extents of a dense tensor, outermost axis first.
type Shape []int

// Numel returns the total number of elements a tensor of this shape holds.
// The empty shape has one element (a scalar).
func (s Shape) Numel() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether two shapes have identical extents.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Leading returns all axes but the last. The returned slice aliases s.
func (s Shape) Leading() Shape {
	if len(s) == 0 {
		return nil
	}
	return s[:len(s)-1]
}

// Clone returns a copy of s that does not alias its backing array.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Dense is a row-major dense float32 tensor.
//
// Like the rest of this package it performs no memory safety beyond the
// checks done by Go's slice types; out-of-range indices panic. Constructors
// validate dimensions, element access does not.
type Dense struct {
	Shape Shape
	Data  []float32
}

// NewDense wraps data in a tensor of the given shape. The data slice is not
// copied. It panics if the data length does not match the shape.
func NewDense(shape Shape, data []float32) *Dense {
	if shape.Numel() != len(data) {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v", len(data), shape))
	}
	for _, d := range shape {
		if d < 0 {
			panic("tensor: negative dimension")
		}
	}
	return &Dense{Shape: shape.Clone(), Data: data}
}

// Zeros allocates a zero-initialised tensor of the given shape.
func Zeros(shape ...int) *Dense {
	s := Shape(shape)
	return NewDense(s, make([]float32, s.Numel()))
}

// Reshape returns a view of t with a new shape covering the same data.
// It panics if the element counts differ.
func (t *Dense) Reshape(shape ...int) *Dense {
	s := Shape(shape)
	if s.Numel() != len(t.Data) {
		panic(fmt.Sprintf("tensor: cannot reshape %v to %v", t.Shape, s))
	}
	return &Dense{Shape: s.Clone(), Data: t.Data}
}

// Clone returns a deep copy of t.
func (t *Dense) Clone() *Dense {
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	return &Dense{Shape: t.Shape.Clone(), Data: data}
}

// FillRand fills t with reproducible pseudo-random values in a small range
// around zero. The same seed always produces the same tensor.
func FillRand(t *Dense, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range t.Data {
		t.Data[i] = (rng.Float32() - 0.5) * 0.02
	}
}

// Ints is a row-major dense tensor of int32 class indices (target codes,
// sampled tokens).
type Ints struct {
	Shape Shape
	Data  []int32
}

// NewInts wraps data in an integer tensor of the given shape.
// It panics if the data length does not match the shape.
func NewInts(shape Shape, data []int32) *Ints {
	if shape.Numel() != len(data) {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v", len(data), shape))
	}
	return &Ints{Shape: shape.Clone(), Data: data}
}

// ZerosInts allocates a zero-initialised integer tensor.
func ZerosInts(shape ...int) *Ints {
	s := Shape(shape)
	return NewInts(s, make([]int32, s.Numel()))
}

// Bools is a row-major dense boolean tensor, used as a validity mask where
// true marks a position as contributing and false marks padding.
type Bools struct {
	Shape Shape
	Data  []bool
}

// NewBools wraps data in a boolean tensor of the given shape.
// It panics if the data length does not match the shape.
func NewBools(shape Shape, data []bool) *Bools {
	if shape.Numel() != len(data) {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v", len(data), shape))
	}
	return &Bools{Shape: shape.Clone(), Data: data}
}

// FullBools allocates a boolean tensor with every element set to v.
func FullBools(v bool, shape ...int) *Bools {
	s := Shape(shape)
	data := make([]bool, s.Numel())
	if v {
		for i := range data {
			data[i] = true
		}
	}
	return &Bools{Shape: s.Clone(), Data: data}
}
