package data

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"github.com/codetta-ml/codetta/internal/logger"
	"github.com/codetta-ml/codetta/internal/pool"
	"github.com/codetta-ml/codetta/internal/tensor"
)

// Config configures a Loader.
type Config struct {
	// BatchSize is the number of examples per batch; must be >= 1.
	BatchSize int
	// Workers is the size of the example-fetching pool; 0 fetches inline.
	Workers int
	// Seed drives shuffling and subset selection.
	Seed uint64
	// Shuffle reshuffles the epoch order on every Batches call.
	Shuffle bool
	// DropLast drops a trailing batch smaller than BatchSize.
	DropLast bool
	// MaxSamples, when positive, restricts the dataset to a random subset.
	MaxSamples int
}

// Batch is a collated group of examples. Codes is [B, K, T] right-padded
// with zeros along T; Mask is [B, K, T], true at valid positions.
type Batch struct {
	Codes *tensor.Ints
	Mask  *tensor.Bools
}

// Loader iterates a dataset in batches.
type Loader struct {
	id    string
	ds    Dataset
	cfg   Config
	log   logger.Logger
	epoch uint64
}

// NewLoader wraps ds in a loader. When cfg.MaxSamples is positive the
// dataset is first restricted to a seeded random subset.
func NewLoader(ds Dataset, cfg Config, log logger.Logger) (*Loader, error) {
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("data: batch size %d must be >= 1", cfg.BatchSize)
	}
	if log == nil {
		log = logger.Default()
	}
	if cfg.MaxSamples > 0 {
		ds = RandomSubset(ds, cfg.MaxSamples, cfg.Seed)
	}
	l := &Loader{
		id:  uuid.NewString(),
		ds:  ds,
		cfg: cfg,
	}
	l.log = log.With("loader", l.id)
	l.log.Info("loader ready",
		"examples", ds.Len(),
		"batch_size", cfg.BatchSize,
		"workers", cfg.Workers,
		"shuffle", cfg.Shuffle)
	return l, nil
}

// ID returns the loader's run identifier, for correlating log lines.
func (l *Loader) ID() string { return l.id }

// Dataset returns the underlying dataset, unwrapping a subset if one was
// applied.
func (l *Loader) Dataset() Dataset {
	if s, ok := l.ds.(*Subset); ok {
		return s.Base()
	}
	return l.ds
}

// Batches iterates one epoch of batches. Each call advances the epoch, so
// with Shuffle enabled successive epochs see different orders while the
// whole run stays reproducible from Config.Seed.
func (l *Loader) Batches(ctx context.Context) iter.Seq2[*Batch, error] {
	epoch := l.epoch
	l.epoch++
	return func(yield func(*Batch, error) bool) {
		n := l.ds.Len()
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		if l.cfg.Shuffle {
			rng := rand.New(rand.NewSource(l.cfg.Seed + epoch))
			rng.Shuffle(n, func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}

		exec := pool.New(l.cfg.Workers)
		defer exec.Close()

		for start := 0; start < n; start += l.cfg.BatchSize {
			end := min(start+l.cfg.BatchSize, n)
			if end-start < l.cfg.BatchSize && l.cfg.DropLast {
				return
			}
			batch, err := l.fetch(ctx, exec, order[start:end])
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}

func (l *Loader) fetch(ctx context.Context, exec pool.Executor, indices []int) (*Batch, error) {
	tasks := make([]*pool.Task, len(indices))
	for i, idx := range indices {
		tasks[i] = exec.Submit(func() (any, error) {
			return l.ds.At(idx)
		})
	}
	examples := make([]Example, len(indices))
	for i, task := range tasks {
		val, err := task.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("data: fetch example %d: %w", indices[i], err)
		}
		examples[i] = val.(Example)
	}
	return collate(examples)
}

// collate right-pads the batch to its longest sequence and derives the
// validity mask. All examples must agree on the codebook count.
func collate(examples []Example) (*Batch, error) {
	b := len(examples)
	lengths := make([]int, b)
	k := 0
	for i, ex := range examples {
		if ex.Codes == nil || len(ex.Codes.Shape) != 2 {
			return nil, fmt.Errorf("data: example %d: codes must be [codebooks, timesteps]", i)
		}
		if i == 0 {
			k = ex.Codes.Shape[0]
		} else if ex.Codes.Shape[0] != k {
			return nil, fmt.Errorf("data: example %d has %d codebooks, want %d", i, ex.Codes.Shape[0], k)
		}
		lengths[i] = ex.Codes.Shape[1]
	}

	timeMask := tensor.LengthsToMask(lengths, 0)
	maxT := timeMask.Shape[1]

	codes := tensor.ZerosInts(b, k, maxT)
	mask := tensor.FullBools(false, b, k, maxT)
	for i, ex := range examples {
		t := lengths[i]
		for kk := 0; kk < k; kk++ {
			dst := (i*k + kk) * maxT
			copy(codes.Data[dst:dst+t], ex.Codes.Data[kk*t:(kk+1)*t])
			copy(mask.Data[dst:dst+maxT], timeMask.Data[i*maxT:(i+1)*maxT])
		}
	}
	return &Batch{Codes: codes, Mask: mask}, nil
}
