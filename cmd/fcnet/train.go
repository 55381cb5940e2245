package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/fcnet/internal/config"
	"github.com/born-ml/fcnet/internal/data"
	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/serialization"
	"github.com/born-ml/fcnet/internal/solver"
	"github.com/born-ml/fcnet/internal/tensor"
)

func newTrainCmd(a *app) *cobra.Command {
	var (
		synthetic bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a classifier",
		Long: `Loads the dataset, builds the model and runs the solver as described by
the run configuration. SIGINT/SIGTERM stops training early; the parameters
with the best validation accuracy so far are still evaluated on the test
set and written to --output.

Example:
  fcnet train --config run.yaml --output model.safetensors`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if synthetic {
				a.cfg.Data.Synthetic = true
			}
			if output != "" {
				a.cfg.Solver.Output = output
			}
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dtype, _ := tensor.ParseDataType(a.cfg.Model.DType)
			switch dtype {
			case tensor.Float64:
				return runTrain[float64](ctx, a.cfg, a.logger)
			default:
				return runTrain[float32](ctx, a.cfg, a.logger)
			}
		},
	}

	cmd.Flags().BoolVar(&synthetic, "synthetic", false, "Train on synthetic Gaussian blobs instead of CIFAR-10")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the final parameters to this SafeTensors file")
	return cmd
}

// runTrain trains the configured model in precision T.
func runTrain[T tensor.Float](ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ds, err := loadDataset[T](cfg, logger)
	if err != nil {
		return err
	}

	model, err := buildModel[T](cfg.Model)
	if err != nil {
		return err
	}
	logger.Info("Model created",
		zap.String("kind", cfg.Model.Kind),
		zap.String("dtype", cfg.Model.DType),
		zap.Ints("hidden_dims", cfg.Model.HiddenDims),
		zap.Int("params", model.Params().NumElements()))

	s, err := solver.New(model, ds, cfg.Solver.Options(logger))
	if err != nil {
		return err
	}
	if cfg.Solver.Resume != "" {
		if err := s.LoadCheckpoint(cfg.Solver.Resume); err != nil {
			return err
		}
		logger.Info("Resumed from checkpoint",
			zap.String("path", cfg.Solver.Resume),
			zap.Int("epoch", s.Epoch()))
	}

	if err := s.Train(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			return fmt.Errorf("training: %w", err)
		}
		logger.Warn("Training interrupted",
			zap.Int("epoch", s.Epoch()),
			zap.Int("iterations", len(s.LossHistory())))
	}

	if ds.XTest != nil {
		testAcc, err := s.CheckAccuracy(ds.XTest, ds.YTest, 0, cfg.Solver.BatchSize)
		if err != nil {
			return fmt.Errorf("test accuracy: %w", err)
		}
		logger.Info("Training finished",
			zap.Float64("best_val_acc", s.BestValAcc()),
			zap.Float64("test_acc", testAcc))
	}

	if path := cfg.Solver.Output; path != "" {
		meta := map[string]string{
			"kind":  cfg.Model.Kind,
			"dtype": cfg.Model.DType,
		}
		if err := serialization.Save(path, model.Params(), meta); err != nil {
			return err
		}
		logger.Info("Parameters saved", zap.String("path", path))
	}
	return nil
}

func loadDataset[T tensor.Float](cfg *config.Config, logger *zap.Logger) (*data.Dataset[T], error) {
	split := cfg.Data.Split()

	var train, test *data.Raw
	if cfg.Data.Synthetic {
		train, test = data.Synthetic(data.SyntheticConfig{
			NumTrain:   split.NumTraining + split.NumValidation,
			NumTest:    split.NumTest,
			Dim:        cfg.Model.InputDim,
			NumClasses: cfg.Model.NumClasses,
			Seed:       cfg.Data.SyntheticSeed,
		})
		logger.Info("Generated synthetic data", zap.Int("samples", train.Len()))
	} else {
		logger.Debug("Loading CIFAR-10", zap.String("dir", cfg.Data.CIFARDir))
		c, err := data.LoadCIFAR10(cfg.Data.CIFARDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load CIFAR-10: %w", err)
		}
		train, test = c.Train, c.Test
		logger.Info("Loaded CIFAR-10", zap.Int("train", train.Len()), zap.Int("test", test.Len()))
	}

	ds, err := data.Prepare[T](train, test, split)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func buildModel[T tensor.Float](m config.ModelConfig) (nn.Model[T], error) {
	switch m.Kind {
	case config.KindThreeLayer:
		cfg, err := m.ThreeLayer()
		if err != nil {
			return nil, err
		}
		net, err := nn.NewThreeLayerNet[T](cfg)
		if err != nil {
			return nil, err
		}
		return net, nil
	case config.KindFullyConnected:
		net, err := nn.NewFullyConnectedNet[T](m.FullyConnected())
		if err != nil {
			return nil, err
		}
		return net, nil
	default:
		return nil, fmt.Errorf("unknown model kind %q", m.Kind)
	}
}
