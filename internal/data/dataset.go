// Package data provides dataset access for multi-codebook token sequences:
// seeded subset selection and a batching loader that pads variable-length
// sequences and builds their validity masks.
package data

import (
	"golang.org/x/exp/rand"

	"github.com/codetta-ml/codetta/internal/tensor"
)

// Example is one training example: a [K, T] matrix of codebook tokens,
// where K is the number of codebooks and T the sequence length.
type Example struct {
	Codes *tensor.Ints
}

// Dataset is random access to a fixed collection of examples. At may be
// called concurrently.
type Dataset interface {
	Len() int
	At(i int) (Example, error)
}

// Subset exposes a fixed selection of another dataset's indices.
type Subset struct {
	base    Dataset
	indices []int
}

// Base returns the dataset the subset draws from.
func (s *Subset) Base() Dataset { return s.base }

func (s *Subset) Len() int { return len(s.indices) }

func (s *Subset) At(i int) (Example, error) { return s.base.At(s.indices[i]) }

// RandomSubset restricts ds to at most maxSamples examples chosen by a
// seeded permutation. When maxSamples covers the whole dataset, ds is
// returned unchanged.
func RandomSubset(ds Dataset, maxSamples int, seed uint64) Dataset {
	if maxSamples >= ds.Len() {
		return ds
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(ds.Len())
	return &Subset{base: ds, indices: perm[:maxSamples]}
}
