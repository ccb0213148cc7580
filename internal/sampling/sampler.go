// Package sampling implements constrained categorical sampling over large
// class cardinalities: a generic multi-dimensional multinomial primitive,
// top-k sampling, and nucleus (top-p) sampling.
//
// All draws consume entropy from a caller-supplied rand.Source; the package
// never seeds or otherwise mutates generator state, so callers own generator
// thread-affinity and determinism.
package sampling

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/codetta-ml/codetta/internal/tensor"
)

var (
	// ErrInvalidDistribution is returned when a probability row contains
	// negative or NaN weights, or does not sum to a positive finite value.
	ErrInvalidDistribution = errors.New("sampling: invalid probability distribution")
	// ErrExhausted is returned when sampling without replacement requests
	// more draws than there are classes with nonzero probability.
	ErrExhausted = errors.New("sampling: not enough classes with nonzero probability")
	// ErrInvalidTopK is returned for k outside [1, cardinality].
	ErrInvalidTopK = errors.New("sampling: top-k bound out of range")
	// ErrInvalidTopP is returned for p outside [0, 1).
	ErrInvalidTopP = errors.New("sampling: top-p threshold out of range")
)

// Multinomial draws numSamples class indices per distribution row.
//
// The input may have arbitrary leading dimensionality with the candidate
// probabilities on the last axis; all leading axes are flattened into one
// batch axis for the draw and restored on the output, which carries a
// trailing numSamples axis. Rows are treated as unnormalized weights.
// Without replacement, each row must have at least numSamples classes
// carrying mass.
func Multinomial(probs *tensor.Dense, numSamples int, replacement bool, src rand.Source) (*tensor.Ints, error) {
	classes, rows, err := rowLayout(probs)
	if err != nil {
		return nil, err
	}
	if numSamples < 1 {
		return nil, fmt.Errorf("%w: num samples %d", ErrInvalidDistribution, numSamples)
	}

	out := make([]int32, rows*numSamples)
	weights := make([]float64, classes)
	for r := 0; r < rows; r++ {
		row := probs.Data[r*classes : (r+1)*classes]
		if err := checkRow(row, weights, r); err != nil {
			return nil, err
		}
		w := sampleuv.NewWeighted(weights, src)
		for s := 0; s < numSamples; s++ {
			idx, ok := w.Take()
			if !ok {
				return nil, fmt.Errorf("%w: row %d, draw %d of %d", ErrExhausted, r, s+1, numSamples)
			}
			// Take zeroes the drawn weight; restore it when sampling
			// with replacement.
			if replacement {
				w.Reweight(idx, weights[idx])
			}
			out[r*numSamples+s] = int32(idx)
		}
	}
	return tensor.NewInts(append(probs.Shape.Leading().Clone(), numSamples), out), nil
}

// TopK samples one token per row among the k highest-probability classes.
//
// The k selected probabilities are used directly as unnormalized weights.
// Ties at the k-th place break deterministically toward the lower class
// index. The output shape is the input shape with the class axis replaced
// by 1.
func TopK(probs *tensor.Dense, k int, src rand.Source) (*tensor.Ints, error) {
	classes, rows, err := rowLayout(probs)
	if err != nil {
		return nil, err
	}
	if k < 1 || k > classes {
		return nil, fmt.Errorf("%w: k=%d with cardinality %d", ErrInvalidTopK, k, classes)
	}

	out := make([]int32, rows)
	weights := make([]float64, classes)
	topIdx := make([]int, 0, k+1)
	topVal := make([]float64, 0, k+1)
	for r := 0; r < rows; r++ {
		row := probs.Data[r*classes : (r+1)*classes]
		if err := checkRow(row, weights, r); err != nil {
			return nil, err
		}

		// Descending insertion shortlist capped at k. The strict comparison
		// keeps earlier (lower) indices ahead of equal later ones.
		topIdx = topIdx[:0]
		topVal = topVal[:0]
		for i, v := range weights {
			pos := len(topVal)
			for pos > 0 && topVal[pos-1] < v {
				pos--
			}
			if pos >= k {
				continue
			}
			topIdx = append(topIdx, 0)
			topVal = append(topVal, 0)
			copy(topIdx[pos+1:], topIdx[pos:])
			copy(topVal[pos+1:], topVal[pos:])
			topIdx[pos] = i
			topVal[pos] = v
			if len(topVal) > k {
				topIdx = topIdx[:k]
				topVal = topVal[:k]
			}
		}

		w := sampleuv.NewWeighted(topVal, src)
		local, ok := w.Take()
		if !ok {
			return nil, fmt.Errorf("%w: row %d", ErrExhausted, r)
		}
		out[r] = int32(topIdx[local])
	}
	return tensor.NewInts(append(probs.Shape.Leading().Clone(), 1), out), nil
}

// TopP samples one token per row from the nucleus of the distribution.
//
// Classes are sorted by descending probability and a class is dropped iff
// the cumulative probability strictly before it already exceeds p. The
// cumulative sum before the first class is always 0, so the top class
// survives for any p >= 0. Survivors are renormalized before the draw and
// the sampled position is mapped back through the sort permutation. The
// output shape is the input shape with the class axis replaced by 1.
func TopP(probs *tensor.Dense, p float64, src rand.Source) (*tensor.Ints, error) {
	classes, rows, err := rowLayout(probs)
	if err != nil {
		return nil, err
	}
	if p < 0 || p >= 1 {
		return nil, fmt.Errorf("%w: p=%v", ErrInvalidTopP, p)
	}

	out := make([]int32, rows)
	weights := make([]float64, classes)
	order := make([]int, classes)
	nucleus := make([]float64, classes)
	for r := 0; r < rows; r++ {
		row := probs.Data[r*classes : (r+1)*classes]
		if err := checkRow(row, weights, r); err != nil {
			return nil, err
		}

		for i := range order {
			order[i] = i
		}
		// Stable sort keeps equal probabilities in ascending index order.
		sort.SliceStable(order, func(a, b int) bool {
			return weights[order[a]] > weights[order[b]]
		})

		var cum, kept float64
		for i, idx := range order {
			w := weights[idx]
			if cum > p {
				nucleus[i] = 0
			} else {
				nucleus[i] = w
				kept += w
			}
			cum += w
		}
		for i := range nucleus {
			nucleus[i] /= kept
		}

		w := sampleuv.NewWeighted(nucleus, src)
		local, ok := w.Take()
		if !ok {
			return nil, fmt.Errorf("%w: row %d", ErrExhausted, r)
		}
		out[r] = int32(order[local])
	}
	return tensor.NewInts(append(probs.Shape.Leading().Clone(), 1), out), nil
}

// rowLayout flattens the leading axes of a probability tensor, returning the
// class cardinality and the number of distribution rows.
func rowLayout(probs *tensor.Dense) (classes, rows int, err error) {
	if len(probs.Shape) == 0 {
		return 0, 0, fmt.Errorf("%w: scalar input", ErrInvalidDistribution)
	}
	classes = probs.Shape[len(probs.Shape)-1]
	if classes < 1 {
		return 0, 0, fmt.Errorf("%w: class cardinality %d", ErrInvalidDistribution, classes)
	}
	return classes, probs.Shape.Numel() / classes, nil
}

// checkRow validates one distribution row and widens it into dst.
func checkRow(row []float32, dst []float64, r int) error {
	var sum float64
	for j, v := range row {
		w := float64(v)
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%w: weight %v at row %d class %d", ErrInvalidDistribution, w, r, j)
		}
		dst[j] = w
		sum += w
	}
	if sum <= 0 || math.IsInf(sum, 0) || math.IsNaN(sum) {
		return fmt.Errorf("%w: row %d weights sum to %v", ErrInvalidDistribution, r, sum)
	}
	return nil
}
