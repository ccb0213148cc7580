package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/exp/rand"

	"github.com/codetta-ml/codetta/internal/loss"
	"github.com/codetta-ml/codetta/internal/sampling"
	"github.com/codetta-ml/codetta/internal/tensor"
)

func benchCmd() *cli.Command {
	var (
		batch       int64
		codebooks   int64
		timesteps   int64
		cardinality int64
		chunks      int64
		softClip    float64
		topK        int64
		topP        float64
		warmupRuns  int64
		benchRuns   int64
		seed        int64
	)

	return &cli.Command{
		Name:  "bench",
		Usage: "Benchmark the cross-entropy and sampling kernels on synthetic data",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "batch", Aliases: []string{"b"}, Usage: "batch size", Value: 8, Destination: &batch},
			&cli.Int64Flag{Name: "codebooks", Aliases: []string{"k"}, Usage: "number of codebooks", Value: 4, Destination: &codebooks},
			&cli.Int64Flag{Name: "timesteps", Aliases: []string{"t"}, Usage: "timesteps per sequence", Value: 250, Destination: &timesteps},
			&cli.Int64Flag{Name: "cardinality", Aliases: []string{"card"}, Usage: "classes per codebook", Value: 2048, Destination: &cardinality},
			&cli.Int64Flag{Name: "chunks", Usage: "cross-entropy chunk count", Value: loss.DefaultChunks, Destination: &chunks},
			&cli.Float64Flag{Name: "soft-clip", Usage: "logit soft-clip bound (0 disables)", Value: 30, Destination: &softClip},
			&cli.Int64Flag{Name: "top-k", Usage: "top-k bound for the sampling benchmark", Value: 250, Destination: &topK},
			&cli.Float64Flag{Name: "top-p", Usage: "top-p threshold for the sampling benchmark", Value: 0.9, Destination: &topP},
			&cli.Int64Flag{Name: "warmup", Usage: "number of warmup runs", Value: 1, Destination: &warmupRuns},
			&cli.Int64Flag{Name: "runs", Usage: "number of benchmark runs", Value: 3, Destination: &benchRuns},
			&cli.Int64Flag{Name: "seed", Usage: "generator seed", Value: 42, Destination: &seed},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := cliLogger()
			applyBenchConfig(cmd, LoadConfig(), &batch, &codebooks, &timesteps, &cardinality)

			b, k, t, c := int(batch), int(codebooks), int(timesteps), int(cardinality)
			log.Info("building synthetic inputs", "batch", b, "codebooks", k, "timesteps", t, "cardinality", c)

			logits := tensor.Zeros(b, k, t, c)
			tensor.FillRand(logits, seed)
			n := b * k * t
			targets := tensor.ZerosInts(b, k, t)
			mask := tensor.FullBools(true, b, k, t)
			for i := 0; i < n; i++ {
				targets.Data[i] = int32(i % c)
				// Pad out the tail fifth of every sequence.
				if i%t > t-t/5 {
					mask.Data[i] = false
					targets.Data[i] = int32(c + 1)
				}
			}

			// One distribution row per (batch, codebook) pair.
			probs := tensor.Zeros(b*k, c)
			copy(probs.Data, logits.Data[:b*k*c])
			for r := 0; r < b*k; r++ {
				tensor.Softmax(probs.Data[r*c : (r+1)*c])
			}

			opts := loss.Options{SoftClip: float32(softClip), Chunks: int(chunks)}
			src := rand.NewSource(uint64(seed))

			fmt.Println("=== Codetta Kernel Benchmark ===")
			fmt.Printf("Positions:  %d (x%d classes)\n", n, c)
			fmt.Printf("CPUs:       %d (GOMAXPROCS %d)\n", runtime.NumCPU(), runtime.GOMAXPROCS(0))
			fmt.Printf("Warmup:     %d runs\n", warmupRuns)
			fmt.Printf("Runs:       %d\n", benchRuns)
			fmt.Println()

			run := func() (ceDur, topkDur, toppDur time.Duration, err error) {
				start := time.Now()
				if _, err = loss.CrossEntropy(logits, targets, mask, opts); err != nil {
					return
				}
				ceDur = time.Since(start)

				start = time.Now()
				if _, err = sampling.TopK(probs, int(topK), src); err != nil {
					return
				}
				topkDur = time.Since(start)

				start = time.Now()
				if _, err = sampling.TopP(probs, topP, src); err != nil {
					return
				}
				toppDur = time.Since(start)
				return
			}

			for i := range int(warmupRuns) {
				log.Debug("warmup run", "run", i+1)
				if _, _, _, err := run(); err != nil {
					return cli.Exit(fmt.Sprintf("error: warmup run %d: %v", i+1, err), 1)
				}
			}

			fmt.Printf("%-6s %14s %14s %14s\n", "Run", "CrossEntropy", "TopK", "TopP")
			var sumCE, sumTopK, sumTopP time.Duration
			for i := range int(benchRuns) {
				ceDur, topkDur, toppDur, err := run()
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: benchmark run %d: %v", i+1, err), 1)
				}
				fmt.Printf("%-6d %14s %14s %14s\n", i+1,
					ceDur.Round(time.Microsecond),
					topkDur.Round(time.Microsecond),
					toppDur.Round(time.Microsecond))
				sumCE += ceDur
				sumTopK += topkDur
				sumTopP += toppDur
			}
			nRuns := time.Duration(benchRuns)
			fmt.Printf("\n%-6s %14s %14s %14s\n", "Avg",
				(sumCE / nRuns).Round(time.Microsecond),
				(sumTopK / nRuns).Round(time.Microsecond),
				(sumTopP / nRuns).Round(time.Microsecond))

			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			fmt.Printf("\nMemory: %.1f MB alloc, %.1f MB sys\n",
				float64(mem.Alloc)/(1024*1024),
				float64(mem.Sys)/(1024*1024))
			return nil
		},
	}
}

// applyBenchConfig applies config file defaults for flags the user did not
// set explicitly.
func applyBenchConfig(c *cli.Command, cfg Config, batch, codebooks, timesteps, cardinality *int64) {
	if cfg.Batch != nil && !c.IsSet("batch") {
		*batch = *cfg.Batch
	}
	if cfg.Codebooks != nil && !c.IsSet("codebooks") {
		*codebooks = *cfg.Codebooks
	}
	if cfg.Timesteps != nil && !c.IsSet("timesteps") {
		*timesteps = *cfg.Timesteps
	}
	if cfg.Cardinality != nil && !c.IsSet("cardinality") {
		*cardinality = *cfg.Cardinality
	}
}
