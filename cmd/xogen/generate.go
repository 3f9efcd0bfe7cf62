package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xostack/xogen"
	"github.com/xostack/xogen/factory"
)

// requestOptions holds the flags shared by generate and rank.
type requestOptions struct {
	n           int
	maxTokens   int
	temperature float64
	stop        []string
	timeout     time.Duration
}

func (r *requestOptions) register(cmd *cobra.Command, defaultN int) {
	cmd.Flags().IntVarP(&r.n, "num", "n", defaultN, "number of completions")
	cmd.Flags().IntVar(&r.maxTokens, "max-tokens", 0, "maximum tokens per completion (0 = provider default)")
	cmd.Flags().Float64VarP(&r.temperature, "temperature", "t", 0.7, "sampling temperature")
	cmd.Flags().StringArrayVar(&r.stop, "stop", nil, "stop sequence (repeatable)")
	cmd.Flags().DurationVar(&r.timeout, "timeout", 2*time.Minute, "overall deadline")
}

func (r *requestOptions) request(prompt string) xogen.Request {
	req := xogen.Request{Prompt: prompt, Temperature: r.temperature, N: r.n, Stop: r.stop}
	if r.maxTokens > 0 {
		req.MaxTokens = xogen.MaxTokensOf(r.maxTokens)
	}
	return req
}

// readPrompt joins args, or reads stdin when there are none or the only
// argument is "-".
func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// runGeneration builds, initializes and calls the selected provider.
func runGeneration(ctx context.Context, opts *globalOptions, req xogen.Request) (*xogen.Generation, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, xogen.ConfigError("", err)
	}
	name := opts.providerName(cfg)
	llmCfg, ok := cfg.GetLLMConfig(name)
	if !ok {
		return nil, xogen.ConfigErrorf("", "configuration for provider '%s' not found", name)
	}

	p, err := factory.New(name, llmCfg, cfg.TimeoutSeconds(), opts.verbose)
	if err != nil {
		return nil, err
	}
	if c, ok := p.(io.Closer); ok {
		defer c.Close()
	}

	slog.Debug("initializing provider", "provider", p.ID())
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	gen, err := p.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	slog.Info("generation complete", "provider", p.ID(), "n", len(gen.Completions), "elapsed", time.Since(start).Round(time.Millisecond))
	return gen, nil
}

func newGenerateCmd(opts *globalOptions) *cobra.Command {
	var (
		reqOpts requestOptions
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Generate completions for a prompt",
		Long: `Generate sends the prompt to one provider and prints every completion.
With no prompt arguments, or "-", the prompt is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(cmd, args)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), reqOpts.timeout)
			defer cancel()

			gen, err := runGeneration(ctx, opts, reqOpts.request(prompt))
			if err != nil {
				return exitError(err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(gen)
			}
			printGeneration(cmd.OutOrStdout(), gen)
			return nil
		},
	}
	reqOpts.register(cmd, 1)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full generation as JSON")
	return cmd
}

func printGeneration(w io.Writer, gen *xogen.Generation) {
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	bold.Fprintf(w, "%s", gen.Provider)
	dim.Fprintf(w, " (%s)\n", gen.Model)
	for i, c := range gen.Completions {
		if len(gen.Completions) > 1 {
			bold.Fprintf(w, "--- completion %d ---\n", i+1)
		}
		fmt.Fprintln(w, c.Text)
	}
}
