//Command westore creates and inspects weighted ensemble archives.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:          "westore",
	Short:        "Create and inspect weighted ensemble simulation archives",
	SilenceUsage: true,
	Long: `westore manages archives of weighted ensemble simulations: runs of
walker trajectories, their resampling and boundary condition records, and
the continuations between runs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		} else {
			cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		}
		l, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("cannot build logger: %w", err)
		}
		zap.ReplaceGlobals(l)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
}

func main() {
	err := rootCmd.Execute()
	_ = zap.L().Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
