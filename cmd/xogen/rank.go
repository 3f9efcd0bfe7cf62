package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xostack/xogen"
)

// rankedCompletion is a completion with its score.
type rankedCompletion struct {
	Index  int
	Text   string
	Score  float64
	Scored bool
}

// rankCompletions orders completions by mean log-probability, highest first.
// Completions without logprobs keep their relative order after scored ones.
func rankCompletions(gen *xogen.Generation) []rankedCompletion {
	ranked := make([]rankedCompletion, len(gen.Completions))
	for i, c := range gen.Completions {
		score, ok := c.MeanLogprob()
		ranked[i] = rankedCompletion{Index: i, Text: c.Text, Score: score, Scored: ok}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Scored != b.Scored {
			return a.Scored
		}
		return a.Scored && a.Score > b.Score
	})
	return ranked
}

func newRankCmd(opts *globalOptions) *cobra.Command {
	var reqOpts requestOptions

	cmd := &cobra.Command{
		Use:   "rank [prompt...]",
		Short: "Generate several completions and rank them by mean log-probability",
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
			printRanking(cmd.OutOrStdout(), rankCompletions(gen))
			return nil
		},
	}
	reqOpts.register(cmd, 5)
	return cmd
}

func printRanking(w io.Writer, ranked []rankedCompletion) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	for pos, r := range ranked {
		if r.Scored {
			green.Fprintf(w, "%2d. %8.4f", pos+1, r.Score)
		} else {
			yellow.Fprintf(w, "%2d. %8s", pos+1, "n/a")
		}
		fmt.Fprintf(w, "  #%d  %s\n", r.Index, r.Text)
	}
}
