// Package main provides the fcnet CLI: train the fully-connected CIFAR-10
// classifiers and gradient check their backward passes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/fcnet/internal/config"
	"github.com/born-ml/fcnet/internal/layers"
)

const version = "v0.0.1-dev"

// app holds state shared by all subcommands.
type app struct {
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "fcnet",
		Short: "Fully-connected softmax classifiers for CIFAR-10",
		Long: `fcnet trains multi-layer fully-connected networks with Leaky ReLU
activations, inverted dropout and an L2-regularized softmax loss.

Two models are available:
  three_layer  affine - leakyrelu - affine - leakyrelu - affine - softmax
  fc           {affine - leakyrelu - [dropout]} x (L - 1) - affine - softmax`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			layers.Parallel = cfg.Solver.Parallel()

			a.logger, err = cfg.Logging.NewLogger(a.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "fcnet.yaml", "Run configuration file")

	root.AddCommand(newTrainCmd(a))
	root.AddCommand(newGradcheckCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		// Skip config loading and logger setup.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fcnet %s\n", version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
