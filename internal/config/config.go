// Package config loads the YAML run configuration of the fcnet CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/fcnet/internal/data"
	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/optim"
	"github.com/born-ml/fcnet/internal/parallel"
	"github.com/born-ml/fcnet/internal/solver"
	"github.com/born-ml/fcnet/internal/tensor"
)

// Model kinds.
const (
	KindFullyConnected = "fc"
	KindThreeLayer     = "three_layer"
)

// Config holds a complete training run configuration.
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Solver  SolverConfig  `yaml:"solver"`
	Data    DataConfig    `yaml:"data"`
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig selects and configures the classifier.
type ModelConfig struct {
	Kind        string  `yaml:"kind"`  // fc, three_layer
	DType       string  `yaml:"dtype"` // float32, float64
	InputDim    int     `yaml:"input_dim"`
	HiddenDims  []int   `yaml:"hidden_dims"`
	NumClasses  int     `yaml:"num_classes"`
	Dropout     float64 `yaml:"dropout"` // Keep probability; 1 disables dropout
	Reg         float64 `yaml:"reg"`
	Alpha       float64 `yaml:"alpha"`
	WeightScale float64 `yaml:"weight_scale"`
	Loss        string  `yaml:"loss"` // softmax, svm
	Seed        uint64  `yaml:"seed"`
	DropoutSeed *uint64 `yaml:"dropout_seed,omitempty"`
}

// SolverConfig configures training.
type SolverConfig struct {
	UpdateRule      string  `yaml:"update_rule"`
	LearningRate    float64 `yaml:"learning_rate"`
	Momentum        float64 `yaml:"momentum,omitempty"`
	DecayRate       float64 `yaml:"decay_rate,omitempty"`
	Beta1           float64 `yaml:"beta1,omitempty"`
	Beta2           float64 `yaml:"beta2,omitempty"`
	Epsilon         float64 `yaml:"epsilon,omitempty"`
	LRDecay         float64 `yaml:"lr_decay"`
	BatchSize       int     `yaml:"batch_size"`
	NumEpochs       int     `yaml:"num_epochs"`
	NumTrainSamples int     `yaml:"num_train_samples"`
	NumValSamples   int     `yaml:"num_val_samples"`
	PrintEvery      int     `yaml:"print_every"`
	Seed            uint64  `yaml:"seed"`
	Workers         int     `yaml:"workers"`    // Goroutines per layer kernel; 0 uses every CPU, 1 runs sequentially
	Checkpoint      string  `yaml:"checkpoint"` // Prefix of per-epoch checkpoint files
	Resume          string  `yaml:"resume"`     // Checkpoint to resume from
	Output          string  `yaml:"output"`     // Final parameters file
}

// DataConfig selects the dataset.
type DataConfig struct {
	CIFARDir      string `yaml:"cifar_dir"`
	Synthetic     bool   `yaml:"synthetic"`
	SyntheticSeed uint64 `yaml:"synthetic_seed"`
	NumTraining   int    `yaml:"num_training"`
	NumValidation int    `yaml:"num_validation"`
	NumTest       int    `yaml:"num_test"`
	SubtractMean  bool   `yaml:"subtract_mean"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Encoding string `yaml:"encoding"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	fc := nn.DefaultFullyConnectedConfig(100, 100)
	split := data.DefaultSplit()
	return &Config{
		Model: ModelConfig{
			Kind:        KindFullyConnected,
			DType:       tensor.Float32.String(),
			InputDim:    fc.InputDim,
			HiddenDims:  fc.HiddenDims,
			NumClasses:  fc.NumClasses,
			Dropout:     fc.Dropout,
			Reg:         fc.Reg,
			Alpha:       fc.Alpha,
			WeightScale: fc.WeightScale,
			Loss:        fc.Loss,
		},
		Solver: SolverConfig{
			UpdateRule:      optim.RuleSGD,
			LearningRate:    1e-2,
			LRDecay:         1,
			BatchSize:       100,
			NumEpochs:       10,
			NumTrainSamples: 1000,
			PrintEvery:      10,
		},
		Data: DataConfig{
			CIFARDir:      "datasets/cifar-10-batches-bin",
			NumTraining:   split.NumTraining,
			NumValidation: split.NumValidation,
			NumTest:       split.NumTest,
			SubtractMean:  split.SubtractMean,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Load loads configuration from a YAML file on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	//nolint:gosec // G304: config path is supplied by the user
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("FCNET_CIFAR_DIR"); dir != "" {
		c.Data.CIFARDir = dir
	}
	if level := os.Getenv("FCNET_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := tensor.ParseDataType(c.Model.DType); err != nil {
		return fmt.Errorf("model.dtype: %w", err)
	}

	switch c.Model.Kind {
	case KindFullyConnected:
		if err := c.Model.FullyConnected().Validate(); err != nil {
			return fmt.Errorf("model: %w", err)
		}
	case KindThreeLayer:
		cfg, err := c.Model.ThreeLayer()
		if err != nil {
			return fmt.Errorf("model: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("model: %w", err)
		}
	default:
		return fmt.Errorf("model.kind: unknown kind %q (want %s or %s)", c.Model.Kind, KindFullyConnected, KindThreeLayer)
	}

	if !slices.Contains(optim.Rules(), c.Solver.UpdateRule) {
		return fmt.Errorf("solver.update_rule: unknown rule %q (want one of %v)", c.Solver.UpdateRule, optim.Rules())
	}
	if c.Solver.LearningRate <= 0 {
		return fmt.Errorf("solver.learning_rate must be positive, got %v", c.Solver.LearningRate)
	}
	if c.Solver.BatchSize <= 0 || c.Solver.NumEpochs <= 0 {
		return fmt.Errorf("solver: batch_size and num_epochs must be positive")
	}
	if c.Solver.Workers < 0 {
		return fmt.Errorf("solver.workers must not be negative, got %d", c.Solver.Workers)
	}

	if !c.Data.Synthetic && c.Data.CIFARDir == "" {
		return fmt.Errorf("data: set cifar_dir or enable synthetic")
	}
	if c.Data.NumTraining <= 0 {
		return fmt.Errorf("data.num_training must be positive, got %d", c.Data.NumTraining)
	}
	if c.Data.Synthetic && c.Model.InputDim <= 0 {
		return fmt.Errorf("model.input_dim must be positive for synthetic data")
	}

	if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Encoding != "json" && c.Logging.Encoding != "console" {
		return fmt.Errorf("logging.encoding: unknown encoding %q (want json or console)", c.Logging.Encoding)
	}
	return nil
}

// FullyConnected returns the FullyConnectedNet configuration.
func (m ModelConfig) FullyConnected() nn.FullyConnectedConfig {
	return nn.FullyConnectedConfig{
		HiddenDims:  m.HiddenDims,
		InputDim:    m.InputDim,
		NumClasses:  m.NumClasses,
		Dropout:     m.Dropout,
		Reg:         m.Reg,
		Alpha:       m.Alpha,
		WeightScale: m.WeightScale,
		Loss:        m.Loss,
		InitSeed:    m.Seed,
		Seed:        m.DropoutSeed,
	}
}

// ThreeLayer returns the ThreeLayerNet configuration. HiddenDims must have
// exactly two entries.
func (m ModelConfig) ThreeLayer() (nn.ThreeLayerConfig, error) {
	if len(m.HiddenDims) != 2 {
		return nn.ThreeLayerConfig{}, fmt.Errorf("%w: three_layer needs 2 hidden dims, got %v", nn.ErrInvalidConfig, m.HiddenDims)
	}
	return nn.ThreeLayerConfig{
		InputDim:    m.InputDim,
		HiddenDims:  [2]int{m.HiddenDims[0], m.HiddenDims[1]},
		NumClasses:  m.NumClasses,
		WeightScale: m.WeightScale,
		Reg:         m.Reg,
		Alpha:       m.Alpha,
		Loss:        m.Loss,
		Seed:        m.Seed,
	}, nil
}

// Options returns the solver options. logger may be nil.
func (s SolverConfig) Options(logger *zap.Logger) solver.Options {
	return solver.Options{
		UpdateRule: s.UpdateRule,
		OptimConfig: optim.Config{
			LR:        s.LearningRate,
			Momentum:  s.Momentum,
			DecayRate: s.DecayRate,
			Beta1:     s.Beta1,
			Beta2:     s.Beta2,
			Eps:       s.Epsilon,
		},
		LRDecay:          s.LRDecay,
		BatchSize:        s.BatchSize,
		NumEpochs:        s.NumEpochs,
		NumTrainSamples:  s.NumTrainSamples,
		NumValSamples:    s.NumValSamples,
		PrintEvery:       s.PrintEvery,
		Seed:             s.Seed,
		CheckpointPrefix: s.Checkpoint,
		Logger:           logger,
	}
}

// Parallel returns the fan-out configuration of the layer kernels.
func (s SolverConfig) Parallel() parallel.Config {
	return parallel.Workers(s.Workers)
}

// Split returns the dataset split.
func (d DataConfig) Split() data.Split {
	return data.Split{
		NumTraining:   d.NumTraining,
		NumValidation: d.NumValidation,
		NumTest:       d.NumTest,
		SubtractMean:  d.SubtractMean,
	}
}

// NewLogger builds a zap logger from the logging configuration.
// verbose forces debug level.
func (l LoggingConfig) NewLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = l.Encoding
	if l.Encoding == "console" {
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	if verbose {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.Level = level

	return cfg.Build()
}
