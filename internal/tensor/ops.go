package tensor

import "math"

// Softmax applies the softmax function to x in place, subtracting the
// maximum before exponentiating to avoid overflow.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	maxv := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > maxv {
			maxv = x[i]
		}
	}
	var sum float64
	for i := range x {
		v := math.Exp(float64(x[i] - maxv))
		x[i] = float32(v)
		sum += v
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / sum)
	for i := range x {
		x[i] *= inv
	}
}

// LengthsToMask converts per-sequence lengths to a [len(lengths), maxLen]
// padding mask: true where a timestep is within the sequence, false where it
// is padding. For example [3, 5] => [[t t t f f], [t t t t t]].
//
// When maxLen <= 0 the mask width is the maximum length, floored at 1 so a
// batch of all-empty sequences still produces a non-empty (fully masked-out)
// tensor. Negative lengths are treated as zero.
func LengthsToMask(lengths []int, maxLen int) *Bools {
	width := maxLen
	if width <= 0 {
		for _, l := range lengths {
			if l > width {
				width = l
			}
		}
		if width < 1 {
			width = 1
		}
	}
	mask := FullBools(false, len(lengths), width)
	for i, l := range lengths {
		if l > width {
			l = width
		}
		for t := 0; t < l; t++ {
			mask.Data[i*width+t] = true
		}
	}
	return mask
}
