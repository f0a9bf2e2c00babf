package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/strand/internal/generate"
	"github.com/samcharles93/strand/internal/tokenizer"
)

func runCmd() *cli.Command {
	var (
		prompts    []string
		steps      int64
		temp       float64
		topP       float64
		seed       int64
		echoPrompt bool
		showTokens bool
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Generate text from one or more prompts",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringSliceFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "prompt text (repeat for batched generation)",
				Destination: &prompts,
			},
			&cli.Int64Flag{
				Name:        "steps",
				Aliases:     []string{"n", "num-tokens"},
				Usage:       "number of tokens to generate",
				Value:       256,
				Destination: &steps,
			},
			&cli.Float64Flag{
				Name:        "temp",
				Aliases:     []string{"temperature", "t"},
				Usage:       "sampling temperature (0 = greedy)",
				Value:       0.8,
				Destination: &temp,
			},
			&cli.Float64Flag{
				Name:        "top-p",
				Aliases:     []string{"top_p", "topp"},
				Usage:       "nucleus sampling parameter",
				Value:       0.95,
				Destination: &topP,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "sampling RNG seed (default -1 = time based)",
				Value:       -1,
				Destination: &seed,
			},
			&cli.BoolFlag{
				Name:        "echo-prompt",
				Usage:       "print prompt text before generation",
				Destination: &echoPrompt,
			},
			&cli.BoolFlag{
				Name:        "show-tokens",
				Usage:       "print prompt token ids",
				Destination: &showTokens,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyRunConfig(c, LoadConfig(), &temp, &topP, &steps, &seed)
			log := newLog()

			if len(prompts) == 0 {
				return cli.Exit("error: no prompt given (use --prompt)", 1)
			}
			if int64(len(prompts)) > maxBatch {
				maxBatch = int64(len(prompts))
			}
			if seed < 0 {
				seed = time.Now().UnixNano()
			}

			rt, err := loadRuntime(log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = rt.Close() }()

			encoded := make([][]int, len(prompts))
			for i, p := range prompts {
				toks, err := rt.tok.Encode(p, true, false)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: encode prompt %d: %v", i, err), 1)
				}
				encoded[i] = toks
			}

			if showTokens {
				for i, toks := range encoded {
					fmt.Fprintf(os.Stderr, "prompt %d tokens: %s\n", i, formatTokens(rt.tok, toks))
				}
			}

			eng := &generate.Engine{
				Model: rt.model,
				PadID: rt.tok.PadID(),
				EOSID: rt.tok.EOSID(),
			}
			if eng.PadID < 0 {
				eng.PadID = rt.tok.EOSID()
			}

			single := len(prompts) == 1
			opts := generate.Options{
				Temperature:  temp,
				TopP:         topP,
				MaxNewTokens: int(steps),
				Seed:         seed,
			}
			if single {
				// Stream tokens as they are committed.
				if echoPrompt {
					fmt.Print(prompts[0])
				}
				opts.OnToken = func(seq, token int) {
					piece, err := rt.tok.Decode([]int{token})
					if err == nil {
						fmt.Print(piece)
					}
				}
			}

			out, finished, stats, err := eng.Generate(ctx, encoded, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: generate: %v", err), 1)
			}

			if single {
				fmt.Println()
			} else {
				for i, toks := range out {
					text, err := rt.tok.Decode(toks[len(encoded[i]):])
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: decode sequence %d: %v", i, err), 1)
					}
					fmt.Printf("--- sequence %d%s ---\n", i, finishNote(finished[i]))
					if echoPrompt {
						text = prompts[i] + text
					}
					fmt.Println(strings.TrimRight(text, "\n"))
				}
			}

			log.Info("generation complete",
				"tokens", stats.TokensGenerated,
				"duration", stats.Duration.Round(time.Millisecond),
				"tok_per_sec", fmt.Sprintf("%.2f", stats.TPS),
			)
			return nil
		},
	}
}

// formatTokens renders ids with their raw vocabulary strings when the
// tokenizer exposes them.
func formatTokens(tok tokenizer.Tokenizer, ids []int) string {
	ts, ok := tok.(interface{ TokenString(int) string })
	if !ok {
		return fmt.Sprint(ids)
	}
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d(%q)", id, ts.TokenString(id))
	}
	return b.String()
}

func finishNote(finished bool) string {
	if finished {
		return " (stopped)"
	}
	return ""
}
