package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/parallel"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, KindFullyConnected, cfg.Model.Kind)
	assert.Equal(t, "float32", cfg.Model.DType)
	assert.Equal(t, []int{100, 100}, cfg.Model.HiddenDims)
	assert.Equal(t, 3072, cfg.Model.InputDim)
	assert.Equal(t, 1.0, cfg.Model.Dropout)
	assert.Equal(t, "sgd", cfg.Solver.UpdateRule)
	assert.Equal(t, 49000, cfg.Data.NumTraining)
	assert.True(t, cfg.Data.SubtractMean)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Setenv("FCNET_CIFAR_DIR", "")
	t.Setenv("FCNET_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "run.yaml")
	yamlText := `
model:
  kind: three_layer
  dtype: float64
  hidden_dims: [64, 32]
  alpha: 0.001
  dropout_seed: 7
solver:
  update_rule: adam
  learning_rate: 0.001
data:
  synthetic: true
  num_training: 500
`
	require.NoError(t, os.WriteFile(path, []byte(yamlText), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, KindThreeLayer, cfg.Model.Kind)
	assert.Equal(t, []int{64, 32}, cfg.Model.HiddenDims)
	require.NotNil(t, cfg.Model.DropoutSeed)
	assert.Equal(t, uint64(7), *cfg.Model.DropoutSeed)
	assert.Equal(t, "adam", cfg.Solver.UpdateRule)
	assert.Equal(t, 100, cfg.Solver.BatchSize, "unset keys keep defaults")
	assert.Equal(t, 500, cfg.Data.NumTraining)

	tl, err := cfg.Model.ThreeLayer()
	require.NoError(t, err)
	assert.Equal(t, [2]int{64, 32}, tl.HiddenDims)
	assert.Equal(t, 0.001, tl.Alpha)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("FCNET_CIFAR_DIR", "/data/cifar")
	t.Setenv("FCNET_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/data/cifar", cfg.Data.CIFARDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	t.Setenv("FCNET_CIFAR_DIR", "")
	t.Setenv("FCNET_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "nested", "run.yaml")
	cfg := DefaultConfig()
	cfg.Model.HiddenDims = []int{10, 20, 30}
	cfg.Solver.Checkpoint = "ckpt/run"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown kind", func(c *Config) { c.Model.Kind = "cnn" }},
		{"bad dtype", func(c *Config) { c.Model.DType = "float16" }},
		{"three layer dims", func(c *Config) { c.Model.Kind = KindThreeLayer; c.Model.HiddenDims = []int{10} }},
		{"bad dropout", func(c *Config) { c.Model.Dropout = 0 }},
		{"unknown loss", func(c *Config) { c.Model.Loss = "hinge" }},
		{"unknown rule", func(c *Config) { c.Solver.UpdateRule = "nesterov" }},
		{"negative workers", func(c *Config) { c.Solver.Workers = -1 }},
		{"zero lr", func(c *Config) { c.Solver.LearningRate = 0 }},
		{"zero batch", func(c *Config) { c.Solver.BatchSize = 0 }},
		{"no data", func(c *Config) { c.Data.CIFARDir = "" }},
		{"no training", func(c *Config) { c.Data.NumTraining = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad encoding", func(c *Config) { c.Logging.Encoding = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestModelConfig_FullyConnected(t *testing.T) {
	seed := uint64(3)
	m := DefaultConfig().Model
	m.Dropout = 0.5
	m.DropoutSeed = &seed
	m.Seed = 11

	fc := m.FullyConnected()
	assert.Equal(t, 0.5, fc.Dropout)
	assert.Equal(t, uint64(11), fc.InitSeed)
	assert.Equal(t, &seed, fc.Seed)

	_, err := nn.NewFullyConnectedNet[float32](fc)
	assert.NoError(t, err)
}

func TestSolverConfig_Options(t *testing.T) {
	s := DefaultConfig().Solver
	s.Momentum = 0.95
	s.Checkpoint = "out/run"

	opts := s.Options(nil)
	assert.Equal(t, 0.01, opts.OptimConfig.LR)
	assert.Equal(t, 0.95, opts.OptimConfig.Momentum)
	assert.Equal(t, "out/run", opts.CheckpointPrefix)
	assert.Equal(t, 100, opts.BatchSize)
}

func TestSolverConfig_Parallel(t *testing.T) {
	s := DefaultConfig().Solver
	assert.Equal(t, parallel.DefaultConfig(), s.Parallel())

	s.Workers = 1
	assert.False(t, s.Parallel().Enabled)

	s.Workers = 4
	assert.Equal(t, 4, s.Parallel().NumWorkers)
}

func TestModelConfig_SVMLoss(t *testing.T) {
	m := DefaultConfig().Model
	assert.Equal(t, nn.LossSoftmax, m.Loss)

	m.Loss = nn.LossSVM
	assert.Equal(t, nn.LossSVM, m.FullyConnected().Loss)

	m.HiddenDims = []int{8, 4}
	tl, err := m.ThreeLayer()
	require.NoError(t, err)
	assert.Equal(t, nn.LossSVM, tl.Loss)
}

func TestLoggingConfig_NewLogger(t *testing.T) {
	for _, enc := range []string{"json", "console"} {
		logger, err := LoggingConfig{Level: "warn", Encoding: enc}.NewLogger(false)
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(-1), "debug disabled at warn")

		logger, err = LoggingConfig{Level: "warn", Encoding: enc}.NewLogger(true)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(-1), "verbose enables debug")
	}

	_, err := LoggingConfig{Level: "nope", Encoding: "json"}.NewLogger(false)
	assert.Error(t, err)
}
