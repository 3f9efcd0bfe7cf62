package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xostack/xogen"
	"github.com/xostack/xogen/factory"
)

func newProvidersCmd(opts *globalOptions) *cobra.Command {
	var (
		check   bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List configured providers",
		Long: `Providers lists every configured entry with its backend type and provider
ID. With --check each provider is initialized and its status reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return exitError(xogen.ConfigError("", err))
			}

			reg, ids, err := factory.BuildRegistry(cfg, opts.verbose)
			if err != nil {
				return exitError(err)
			}
			defer reg.Close()

			states := map[string]string{}
			if check {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				_ = reg.InitializeAll(ctx)
				for _, st := range reg.Statuses() {
					states[st.ID] = st.State
					if st.Err != nil {
						states[st.ID] = fmt.Sprintf("%s: %v", st.State, st.Err)
					}
				}
			}

			names := make([]string, 0, len(cfg.LLMs))
			for name := range cfg.LLMs {
				names = append(names, name)
			}
			sort.Strings(names)

			w := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			green := color.New(color.FgGreen)
			red := color.New(color.FgRed)

			for _, name := range names {
				marker := " "
				if name == cfg.DefaultProvider {
					marker = "*"
				}
				id, built := ids[name]
				bold.Fprintf(w, "%s %-12s", marker, name)
				fmt.Fprintf(w, " %-8s", cfg.LLMs[name].BackendType(name))
				switch {
				case !built:
					red.Fprintln(w, " unavailable")
				case check:
					state := states[id]
					if state == "ready" {
						green.Fprintf(w, " %s ready\n", id)
					} else {
						red.Fprintf(w, " %s %s\n", id, state)
					}
				default:
					fmt.Fprintf(w, " %s\n", id)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "initialize each provider and report its status")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "deadline for --check")
	return cmd
}
