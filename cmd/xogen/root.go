package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xostack/xogen/config"
	xlog "github.com/xostack/xogen/internal/log"
)

// globalOptions holds the persistent flag values.
type globalOptions struct {
	verbose    bool
	quiet      bool
	noColor    bool
	configPath string
	provider   string
}

// loadConfig reads the --config file, or the XDG configuration otherwise.
func (o *globalOptions) loadConfig() (config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromFile(o.configPath)
	}
	return config.Load(o.verbose)
}

// providerName returns --provider or the configured default.
func (o *globalOptions) providerName(cfg config.Config) string {
	if o.provider != "" {
		return o.provider
	}
	return cfg.DefaultProvider
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "xogen",
		Short: "Generate and score completions from pluggable LLM providers",
		Long: `xogen sends one-shot generation requests to configured language-model
providers (Ollama, OpenAI, Gemini, Groq, Claude or a mock) and prints the
completions, with token log-probabilities where the backend reports them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			xlog.Setup(opts.verbose, opts.quiet)
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (TOML or YAML)")
	cmd.PersistentFlags().StringVarP(&opts.provider, "provider", "p", "", "provider entry to use (default from config)")

	cmd.AddCommand(newGenerateCmd(opts))
	cmd.AddCommand(newRankCmd(opts))
	cmd.AddCommand(newProvidersCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}
