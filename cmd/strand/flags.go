package main

import "github.com/urfave/cli/v3"

var (
	modelPath     string
	paramsPath    string
	tokenizerPath string
	maxContext    int64
	maxBatch      int64
	backendName   string
	logLevel      string
	logFormat     string
	debug         bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to .safetensors file",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "params",
			Usage:       "path to params.json (defaults to params.json beside the model)",
			Destination: &paramsPath,
		},
		&cli.StringFlag{
			Name:        "tokenizer",
			Usage:       "path to tokenizer.json (defaults to tokenizer.json beside the model)",
			Destination: &tokenizerPath,
		},
		&cli.Int64Flag{
			Name:        "max-context",
			Aliases:     []string{"max-ctx", "ctx", "c"},
			Usage:       "max context length",
			Value:       2048,
			Destination: &maxContext,
		},
		&cli.Int64Flag{
			Name:        "max-batch",
			Aliases:     []string{"batch", "b"},
			Usage:       "max concurrent sequences",
			Value:       1,
			Destination: &maxBatch,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "execution backend (auto, cpu)",
			Value:       "auto",
			Destination: &backendName,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Value:       "text",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
