package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/codetta-ml/codetta/internal/logger"
)

var (
	logLevel  string
	logFormat string
)

func main() {
	app := &cli.Command{
		Name:  "codetta",
		Usage: "Utilities for multi-codebook audio token model training",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "log format (pretty, json, text)",
				Destination: &logFormat,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			benchCmd(),
			sweepCmd(),
			seedCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliLogger builds the process logger from flags, falling back to the
// config file for values no flag set. Called from command actions, after
// flag parsing.
func cliLogger() logger.Logger {
	cfg := LoadConfig()
	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	format := logFormat
	if format == "" {
		format = cfg.LogFormat
	}

	lvl := logger.ParseLevel(level)
	switch format {
	case "json":
		return logger.JSON(os.Stderr, lvl)
	case "text":
		return logger.Default()
	default:
		return logger.Pretty(os.Stderr, lvl)
	}
}
