// Package loss implements the masked multi-codebook cross-entropy kernel
// used for training audio token generation models. The cross entropy is
// computed per codebook so codebook-level losses can be reported; invalid
// timesteps are pulled from the mask and forced to zero.
package loss

import (
	"errors"
	"fmt"
	"math"

	"github.com/codetta-ml/codetta/internal/tensor"
)

// DType selects the working precision of the log-sum-exp accumulation.
// It is independent of the storage precision of the input logits.
type DType int

const (
	// DTypeF32 computes the loss in 32-bit floats (the default).
	DTypeF32 DType = iota
	// DTypeF64 accumulates in 64-bit floats, trading memory for stability
	// at very large class cardinalities.
	DTypeF64
)

// DefaultChunks is the number of contiguous row chunks the flattened batch
// is split into. Chunking bounds the peak size of the working-precision
// copy of the logits.
const DefaultChunks = 4

var (
	// ErrShapeMismatch is returned when the logits, targets and mask shapes
	// do not line up.
	ErrShapeMismatch = errors.New("loss: shape mismatch")
	// ErrTargetOutOfRange is returned when a target at a valid (unmasked)
	// position does not reference an existing class.
	ErrTargetOutOfRange = errors.New("loss: target index out of range")
)

// Options configures CrossEntropy. The zero value means float32 working
// precision, no soft clipping, and DefaultChunks chunks.
type Options struct {
	// DType is the working precision of the loss computation.
	DType DType
	// SoftClip, when positive, bounds the logits to (-SoftClip, SoftClip)
	// via SoftClip*tanh(x/SoftClip) before the log-sum-exp, preventing
	// overflow while preserving gradient direction for small logits.
	// The recommended value is 30.
	SoftClip float32
	// Chunks overrides DefaultChunks when positive.
	Chunks int
}

// CrossEntropy computes cross entropy between multi-codebook targets and
// model logits.
//
// Logits have shape [B, K, T, card], targets and mask have shape [B, K, T].
// The returned tensor has shape [B, K, T]; positions where mask is false
// contribute exactly 0 and their target values are ignored entirely, so
// garbage (even out-of-range) codes at padded positions are harmless.
// A naive library softmax-cross-entropy is very slow at large cardinality,
// so the log-partition and target gather are computed explicitly here.
func CrossEntropy(logits *tensor.Dense, targets *tensor.Ints, mask *tensor.Bools, opts Options) (*tensor.Dense, error) {
	if len(logits.Shape) == 0 || !logits.Shape.Leading().Equal(targets.Shape) {
		return nil, fmt.Errorf("%w: logits %v vs targets %v", ErrShapeMismatch, logits.Shape, targets.Shape)
	}
	if !mask.Shape.Equal(targets.Shape) {
		return nil, fmt.Errorf("%w: mask %v vs targets %v", ErrShapeMismatch, mask.Shape, targets.Shape)
	}
	classes := logits.Shape[len(logits.Shape)-1]
	if classes < 1 {
		return nil, fmt.Errorf("%w: class cardinality %d", ErrShapeMismatch, classes)
	}

	n := targets.Shape.Numel()
	chunks := opts.Chunks
	if chunks <= 0 {
		chunks = DefaultChunks
	}

	// Sanitize-before-gather: replace target codes at masked-out positions
	// with class 0 so the gather below stays in range. The resulting values
	// are zeroed at the end.
	safe := make([]int32, n)
	for i := 0; i < n; i++ {
		if !mask.Data[i] {
			continue
		}
		code := targets.Data[i]
		if code < 0 || int(code) >= classes {
			return nil, fmt.Errorf("%w: code %d at flat position %d, cardinality %d",
				ErrTargetOutOfRange, code, i, classes)
		}
		safe[i] = code
	}

	out := make([]float32, n)
	chunkSize := (n + chunks - 1) / chunks
	if chunkSize < 1 {
		chunkSize = 1
	}
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		rows := logits.Data[start*classes : end*classes]
		if opts.DType == DTypeF64 {
			ceRows64(out[start:end], rows, safe[start:end], classes, opts.SoftClip)
		} else {
			ceRows32(out[start:end], rows, safe[start:end], classes, opts.SoftClip)
		}
	}

	for i := 0; i < n; i++ {
		if !mask.Data[i] {
			out[i] = 0
		}
	}
	return tensor.NewDense(targets.Shape, out), nil
}

// ceRows32 computes per-row cross entropy in float32 working precision:
// ce = logsumexp(row) - row[target], with optional soft clipping applied to
// the row before both the partition and the gather.
func ceRows32(out, logits []float32, targets []int32, classes int, clip float32) {
	row := make([]float32, classes)
	for r := range out {
		src := logits[r*classes : (r+1)*classes]
		if clip > 0 {
			for j, v := range src {
				row[j] = clip * float32(math.Tanh(float64(v)/float64(clip)))
			}
		} else {
			copy(row, src)
		}
		maxv := row[0]
		for _, v := range row[1:] {
			if v > maxv {
				maxv = v
			}
		}
		var sum float32
		for _, v := range row {
			sum += float32(math.Exp(float64(v - maxv)))
		}
		logZ := maxv + float32(math.Log(float64(sum)))
		out[r] = logZ - row[targets[r]]
	}
}

// ceRows64 is ceRows32 with float64 accumulation.
func ceRows64(out, logits []float32, targets []int32, classes int, clip float32) {
	row := make([]float64, classes)
	for r := range out {
		src := logits[r*classes : (r+1)*classes]
		if clip > 0 {
			c := float64(clip)
			for j, v := range src {
				row[j] = c * math.Tanh(float64(v)/c)
			}
		} else {
			for j, v := range src {
				row[j] = float64(v)
			}
		}
		maxv := row[0]
		for _, v := range row[1:] {
			if v > maxv {
				maxv = v
			}
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(v - maxv)
		}
		logZ := maxv + math.Log(sum)
		out[r] = float32(logZ - row[targets[r]])
	}
}
