package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/codetta-ml/codetta/internal/config"
)

func sweepCmd() *cli.Command {
	var gridPath string

	return &cli.Command{
		Name:      "sweep",
		Usage:     "Expand a YAML hyperparameter grid into one JSON object per run",
		ArgsUsage: "<grid.yaml>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "grid",
				Aliases:     []string{"g"},
				Usage:       "path to the grid file (alternative to the positional argument)",
				Destination: &gridPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := cliLogger()
			path := gridPath
			if path == "" {
				path = cmd.Args().First()
			}
			if path == "" {
				return cli.Exit("error: no grid file given", 1)
			}

			raw, err := config.Load(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load grid: %v", err), 1)
			}
			grid := make(map[string][]any, len(raw))
			for key, v := range raw {
				values, ok := v.([]any)
				if !ok {
					// A scalar pins the key to a single value.
					values = []any{v}
				}
				grid[key] = values
			}

			runs := config.Product(grid)
			log.Info("expanded grid", "keys", len(grid), "runs", len(runs))

			enc := json.NewEncoder(os.Stdout)
			for _, run := range runs {
				if err := enc.Encode(run); err != nil {
					return cli.Exit(fmt.Sprintf("error: encode run: %v", err), 1)
				}
			}
			return nil
		},
	}
}
