// Package gradnorm reports gradient L2 norms per category of model weights
// (e.g. "attention", "embeddings", "heads"), an instrumentation signal for
// diagnosing training instabilities. The distributed reduction is an
// external collaborator behind the Reducer interface; this package only
// invokes it.
package gradnorm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/codetta-ml/codetta/internal/tensor"
)

// Param is a trainable parameter's gradient for the current step. A nil
// Grad means the parameter received no gradient and is skipped.
type Param struct {
	Name string
	Grad *tensor.Dense
}

// Reducer sums a vector of partial values across workers in place. With
// fully-sharded training each worker holds only its shard of the squared
// norms, so one reduction at the end yields the global values.
type Reducer interface {
	AllReduceSum(ctx context.Context, values []float64) error
}

// NoopReducer is the Reducer for single-process runs.
type NoopReducer struct{}

func (NoopReducer) AllReduceSum(context.Context, []float64) error { return nil }

// Meter computes gradient norms for a fixed category layout. A parameter
// may belong to several categories; its norm is computed once and its
// square added to every owning category.
type Meter struct {
	reducer    Reducer
	categories []string
	index      map[string]int
	// members[i] lists the parameters of categories[i]; shared parameters
	// appear in several lists but are measured once per Norms call.
	members map[string][]*Param
}

// NewMeter builds a Meter over the given category layout.
func NewMeter(categories map[string][]*Param, r Reducer) (*Meter, error) {
	if len(categories) == 0 {
		return nil, errors.New("gradnorm: no categories")
	}
	if r == nil {
		r = NoopReducer{}
	}
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}
	return &Meter{
		reducer:    r,
		categories: names,
		index:      index,
		members:    categories,
	}, nil
}

// Norms returns the L2 norm of the gradient per category, along with the
// distinct gradients visited this step (in no particular order).
func (m *Meter) Norms(ctx context.Context) (map[string]float64, []*tensor.Dense, error) {
	sq := make([]float64, len(m.categories))
	norm2 := make(map[*tensor.Dense]float64)
	grads := make([]*tensor.Dense, 0, len(norm2))

	for name, params := range m.members {
		idx := m.index[name]
		for _, p := range params {
			if p == nil || p.Grad == nil {
				continue
			}
			n2, seen := norm2[p.Grad]
			if !seen {
				n := float64(blas32.Nrm2(blas32.Vector{
					N:    len(p.Grad.Data),
					Inc:  1,
					Data: p.Grad.Data,
				}))
				n2 = n * n
				norm2[p.Grad] = n2
				grads = append(grads, p.Grad)
			}
			sq[idx] += n2
		}
	}

	if err := m.reducer.AllReduceSum(ctx, sq); err != nil {
		return nil, nil, fmt.Errorf("gradnorm: all-reduce: %w", err)
	}

	out := make(map[string]float64, len(m.categories))
	for i, name := range m.categories {
		out[name] = math.Sqrt(sq[i])
	}
	return out, grads, nil
}
