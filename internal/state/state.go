// Package state handles model parameter state: deep copies, temporary state
// swaps, and safetensors persistence.
package state

import "github.com/codetta-ml/codetta/internal/tensor"

// Dict maps parameter names to their tensors.
type Dict map[string]*tensor.Dense

// Clone returns a deep copy of the dict; no tensor data is shared with the
// receiver.
func (d Dict) Clone() Dict {
	out := make(Dict, len(d))
	for name, t := range d {
		out[name] = t.Clone()
	}
	return out
}

// Stateful is anything whose parameters can be captured and restored as a
// Dict. StateDict must return tensors owned by the model (Clone before
// mutating); LoadStateDict copies the provided values in.
type Stateful interface {
	StateDict() Dict
	LoadStateDict(Dict) error
}

// Swap loads s into m, runs fn, and restores m's previous state afterwards,
// whether or not fn succeeded. fn's error wins over a restore error.
func Swap(m Stateful, s Dict, fn func() error) error {
	old := m.StateDict().Clone()
	if err := m.LoadStateDict(s); err != nil {
		return err
	}
	fnErr := fn()
	if err := m.LoadStateDict(old); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}
