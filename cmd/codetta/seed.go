package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/codetta-ml/codetta/internal/hashutil"
)

func seedCmd() *cli.Command {
	var (
		nBytes int64
		vocab  int64
	)

	return &cli.Command{
		Name:      "seed",
		Usage:     "Derive a deterministic seed (and optionally a vocab index) from a string",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "bytes",
				Usage:       "number of digest bytes used for the seed (1-8)",
				Value:       8,
				Destination: &nBytes,
			},
			&cli.Int64Flag{
				Name:        "vocab",
				Usage:       "also print the hash-trick index for this vocabulary size",
				Destination: &vocab,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return cli.Exit("error: no string given", 1)
			}
			fmt.Printf("seed:  %d\n", hashutil.SeedFromString(name, int(nBytes)))
			if vocab > 0 {
				idx, err := hashutil.HashTrick(name, int(vocab))
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				fmt.Printf("index: %d\n", idx)
			}
			return nil
		},
	}
}
