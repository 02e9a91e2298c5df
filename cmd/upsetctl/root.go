package main

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/okian/upsetlens/internal/explorer"
	"github.com/okian/upsetlens/pkg/logger"
)

func newRootCommand() *cobra.Command {
	cfg := explorer.DefaultConfig()
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "upsetctl",
		Short:         "Explore set intersections on an upsetlens server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.Options{Output: cmd.ErrOrStderr()}); err != nil {
				return err
			}
			level := "warn"
			if verbose {
				level = "debug"
			}
			return logger.SetLevelString(level)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.IntVar(&cfg.Publications, "publications", cfg.Publications, "Number of synthetic publications")
	flags.IntVar(&cfg.Albums, "albums", cfg.Albums, "Number of synthetic albums")
	flags.IntSliceVar(&cfg.Years, "years", cfg.Years, "Review years")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Generator seed")
	flags.IntVar(&cfg.BrushTop, "brush-top", cfg.BrushTop, "Ranks brushed per publication")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	exploreCmd := &cobra.Command{
		Use:   "explore",
		Short: "Load synthetic data, select bins and brushes, and print the intersections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Mode = strings.ToLower(cfg.Mode)
			_, err := explorer.Run(cmd.Context(), cfg, cmd.OutOrStdout())
			return err
		},
	}
	exploreCmd.Flags().StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Base URL of the service")
	exploreCmd.Flags().StringVar(&cfg.Mode, "mode", cfg.Mode, "Intersection mode: exclusive or inclusive")
	exploreCmd.Flags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Print the synthetic dataset as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(explorer.Generate(cfg))
		},
	}

	rootCmd.AddCommand(exploreCmd, generateCmd)
	return rootCmd
}
