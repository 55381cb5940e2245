// Package solver trains classification models with minibatch gradient descent.
//
// A Solver wraps a model, a prepared dataset and an update rule. Train runs
// a fixed number of epochs, periodically checks training and validation
// accuracy, remembers the parameters with the best validation accuracy and
// swaps them into the model when training finishes.
//
// Example:
//
//	s, err := solver.New(model, ds, solver.Options{
//	    UpdateRule:  optim.RuleAdam,
//	    OptimConfig: optim.Config{LR: 1e-3},
//	    NumEpochs:   10,
//	    BatchSize:   100,
//	    Logger:      logger,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := s.Train(ctx); err != nil {
//	    return err
//	}
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/born-ml/fcnet/internal/data"
	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/optim"
	"github.com/born-ml/fcnet/internal/serialization"
	"github.com/born-ml/fcnet/internal/tensor"
)

// Common errors.
var (
	ErrInvalidOptions = errors.New("invalid solver options")
	ErrDiverged       = errors.New("loss is not finite")
)

// Options configures a Solver. Zero values select the defaults.
type Options struct {
	UpdateRule      string       // Name of the update rule (default: "sgd")
	OptimConfig     optim.Config // Hyperparameters of the update rule
	LRDecay         float64      // Learning rate multiplier applied after each epoch (default: 1)
	BatchSize       int          // Minibatch size (default: 100)
	NumEpochs       int          // Number of epochs (default: 10)
	NumTrainSamples int          // Training samples used to check accuracy (default: 1000)
	NumValSamples   int          // Validation samples used to check accuracy; 0 uses all
	PrintEvery      int          // Log the loss every PrintEvery iterations (default: 10)
	Seed            uint64       // Seed of minibatch sampling

	// CheckpointPrefix, when set, writes "<prefix>_epoch_<n>.safetensors"
	// after every accuracy check.
	CheckpointPrefix string

	Logger *zap.Logger // Defaults to zap.NewNop()
}

func (o *Options) setDefaults() {
	if o.UpdateRule == "" {
		o.UpdateRule = optim.RuleSGD
	}
	if o.LRDecay == 0 {
		o.LRDecay = 1
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.NumEpochs == 0 {
		o.NumEpochs = 10
	}
	if o.NumTrainSamples == 0 {
		o.NumTrainSamples = 1000
	}
	if o.PrintEvery == 0 {
		o.PrintEvery = 10
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Solver performs minibatch training of a model.
type Solver[T tensor.Float] struct {
	model nn.Model[T]
	data  *data.Dataset[T]
	opts  Options
	optim optim.Optimizer[T]
	rng   *rand.Rand
	log   *zap.Logger

	epoch      int
	bestValAcc float64
	bestParams *nn.ParamSet[T]

	lossHistory     []float64
	trainAccHistory []float64
	valAccHistory   []float64
}

// New creates a solver for model on ds.
func New[T tensor.Float](model nn.Model[T], ds *data.Dataset[T], opts Options) (*Solver[T], error) {
	opts.setDefaults()
	switch {
	case model == nil:
		return nil, fmt.Errorf("%w: nil model", ErrInvalidOptions)
	case ds == nil || ds.XTrain == nil || len(ds.YTrain) == 0:
		return nil, fmt.Errorf("%w: empty training set", ErrInvalidOptions)
	case opts.BatchSize < 0 || opts.NumEpochs < 0 || opts.PrintEvery < 0 || opts.NumTrainSamples < 0 || opts.NumValSamples < 0:
		return nil, fmt.Errorf("%w: negative count in %+v", ErrInvalidOptions, opts)
	case opts.LRDecay < 0:
		return nil, fmt.Errorf("%w: lr decay %v", ErrInvalidOptions, opts.LRDecay)
	}

	opt, err := optim.New[T](opts.UpdateRule, opts.OptimConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	return &Solver[T]{
		model: model,
		data:  ds,
		opts:  opts,
		optim: opt,
		rng:   rand.New(rand.NewSource(opts.Seed)),
		log:   opts.Logger,
	}, nil
}

// Epoch returns the number of completed epochs.
func (s *Solver[T]) Epoch() int {
	return s.epoch
}

// Optimizer returns the update rule driving the model parameters.
func (s *Solver[T]) Optimizer() optim.Optimizer[T] {
	return s.optim
}

// LossHistory returns the loss of every iteration.
func (s *Solver[T]) LossHistory() []float64 {
	return append([]float64(nil), s.lossHistory...)
}

// TrainAccHistory returns the training accuracy of every accuracy check.
func (s *Solver[T]) TrainAccHistory() []float64 {
	return append([]float64(nil), s.trainAccHistory...)
}

// ValAccHistory returns the validation accuracy of every accuracy check.
func (s *Solver[T]) ValAccHistory() []float64 {
	return append([]float64(nil), s.valAccHistory...)
}

// BestValAcc returns the best validation accuracy seen so far.
func (s *Solver[T]) BestValAcc() float64 {
	return s.bestValAcc
}

// Step samples one minibatch, computes the loss and gradients and applies
// the update rule. It returns the loss of the minibatch.
func (s *Solver[T]) Step() (float64, error) {
	n := len(s.data.YTrain)
	idx := make([]int, min(s.opts.BatchSize, n))
	for i := range idx {
		idx[i] = s.rng.Intn(n)
	}
	x, y := data.Batch(s.data.XTrain, s.data.YTrain, idx)

	loss, grads, err := s.model.Loss(x, y)
	if err != nil {
		return 0, fmt.Errorf("loss: %w", err)
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return loss, fmt.Errorf("%w: %v", ErrDiverged, loss)
	}
	s.lossHistory = append(s.lossHistory, loss)

	if err := s.optim.Step(s.model.Params(), grads); err != nil {
		return loss, fmt.Errorf("update: %w", err)
	}
	return loss, nil
}

// Train runs NumEpochs epochs of optimization.
//
// Accuracy is checked after the first iteration, at the end of every epoch
// and after the last iteration. When a validation set is present, the
// parameters with the best validation accuracy are loaded back into the
// model before Train returns, including when ctx is cancelled.
func (s *Solver[T]) Train(ctx context.Context) error {
	n := len(s.data.YTrain)
	itersPerEpoch := max(n/s.opts.BatchSize, 1)
	numIters := s.opts.NumEpochs * itersPerEpoch

	s.log.Info("Starting training",
		zap.String("update_rule", s.opts.UpdateRule),
		zap.String("dtype", tensor.DataTypeOf[T]().String()),
		zap.Int("num_train", n),
		zap.Int("iterations", numIters),
		zap.Float64("learning_rate", s.optim.GetLR()))

	defer s.restoreBest()

	for t := range numIters {
		if err := ctx.Err(); err != nil {
			return err
		}

		loss, err := s.Step()
		if err != nil {
			return fmt.Errorf("iteration %d: %w", t+1, err)
		}
		if t%s.opts.PrintEvery == 0 {
			s.log.Info("Iteration",
				zap.Int("iteration", t+1),
				zap.Int("of", numIters),
				zap.Float64("loss", loss))
		}

		epochEnd := (t+1)%itersPerEpoch == 0
		if epochEnd {
			s.epoch++
			s.optim.SetLR(s.optim.GetLR() * s.opts.LRDecay)
		}

		if t == 0 || t == numIters-1 || epochEnd {
			if err := s.checkpointAccuracy(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Solver[T]) checkpointAccuracy() error {
	trainAcc, err := s.CheckAccuracy(s.data.XTrain, s.data.YTrain, s.opts.NumTrainSamples, s.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("train accuracy: %w", err)
	}
	s.trainAccHistory = append(s.trainAccHistory, trainAcc)

	fields := []zap.Field{
		zap.Int("epoch", s.epoch),
		zap.Int("of", s.opts.NumEpochs),
		zap.Float64("train_acc", trainAcc),
	}

	if s.data.XVal != nil {
		valAcc, err := s.CheckAccuracy(s.data.XVal, s.data.YVal, s.opts.NumValSamples, s.opts.BatchSize)
		if err != nil {
			return fmt.Errorf("val accuracy: %w", err)
		}
		s.valAccHistory = append(s.valAccHistory, valAcc)
		fields = append(fields, zap.Float64("val_acc", valAcc))

		if s.bestParams == nil || valAcc > s.bestValAcc {
			s.bestValAcc = valAcc
			s.bestParams = s.model.Params().Clone()
		}
	}
	s.log.Info("Accuracy", fields...)

	if s.opts.CheckpointPrefix != "" {
		path := fmt.Sprintf("%s_epoch_%d.safetensors", s.opts.CheckpointPrefix, s.epoch)
		if err := s.SaveCheckpoint(path); err != nil {
			return err
		}
		s.log.Debug("Checkpoint written", zap.String("path", path))
	}
	return nil
}

func (s *Solver[T]) restoreBest() {
	if s.bestParams == nil {
		return
	}
	if err := s.model.Params().Load(s.bestParams); err != nil {
		s.log.Warn("Failed to restore best parameters", zap.Error(err))
		return
	}
	s.log.Info("Restored best parameters", zap.Float64("val_acc", s.bestValAcc))
}

// CheckAccuracy returns the fraction of samples in x whose predicted class
// matches y. When numSamples > 0 and x holds more samples, a random subset
// of numSamples is evaluated. Scores are computed batchSize samples at a
// time.
func (s *Solver[T]) CheckAccuracy(x *tensor.Dense[T], y []int, numSamples, batchSize int) (float64, error) {
	n := len(y)
	if n == 0 {
		return 0, nil
	}
	idx := s.rng.Perm(n)
	if numSamples > 0 && numSamples < n {
		idx = idx[:numSamples]
	}
	if batchSize <= 0 {
		batchSize = len(idx)
	}

	correct := 0
	for lo := 0; lo < len(idx); lo += batchSize {
		hi := min(lo+batchSize, len(idx))
		xb, yb := data.Batch(x, y, idx[lo:hi])
		pred, err := nn.Predict(s.model, xb)
		if err != nil {
			return 0, err
		}
		for i, p := range pred {
			if p == yb[i] {
				correct++
			}
		}
	}
	return float64(correct) / float64(len(idx)), nil
}

// Checkpoint tensor name prefixes for optimizer state and best parameters.
const (
	optimPrefix = "optim."
	bestPrefix  = "best."
)

// SaveCheckpoint writes the model parameters and optimizer state to path.
func (s *Solver[T]) SaveCheckpoint(path string) error {
	ckpt := s.model.Params().Clone()
	for key, t := range s.optim.StateDict() {
		ckpt.Set(optimPrefix+key, t)
	}
	if s.bestParams != nil {
		for _, name := range s.bestParams.Names() {
			ckpt.Set(bestPrefix+name, s.bestParams.Get(name))
		}
	}

	meta := map[string]string{
		"update_rule":   s.opts.UpdateRule,
		"learning_rate": strconv.FormatFloat(s.optim.GetLR(), 'g', -1, 64),
		"epoch":         strconv.Itoa(s.epoch),
		"dtype":         tensor.DataTypeOf[T]().String(),
	}
	if len(s.valAccHistory) > 0 {
		meta["best_val_acc"] = strconv.FormatFloat(s.bestValAcc, 'g', -1, 64)
	}

	if err := serialization.Save(path, ckpt, meta); err != nil {
		return fmt.Errorf("checkpoint %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint restores model parameters, optimizer state, learning rate,
// epoch counter and best validation result from a file written by
// SaveCheckpoint.
func (s *Solver[T]) LoadCheckpoint(path string) error {
	ckpt, meta, err := serialization.Load[T](path)
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", path, err)
	}
	if rule := meta["update_rule"]; rule != "" && rule != s.opts.UpdateRule {
		return fmt.Errorf("%w: checkpoint uses update rule %q, solver uses %q", ErrInvalidOptions, rule, s.opts.UpdateRule)
	}

	if err := s.model.Params().Load(ckpt); err != nil {
		return fmt.Errorf("checkpoint %s: %w", path, err)
	}

	state := make(map[string]*tensor.Dense[T])
	best := nn.NewParamSet[T]()
	for _, name := range ckpt.Names() {
		if key, ok := strings.CutPrefix(name, optimPrefix); ok {
			state[key] = ckpt.Get(name)
		} else if key, ok := strings.CutPrefix(name, bestPrefix); ok {
			best.Set(key, ckpt.Get(name))
		}
	}
	if err := s.optim.LoadStateDict(state); err != nil {
		return fmt.Errorf("checkpoint %s: %w", path, err)
	}

	if acc, err := strconv.ParseFloat(meta["best_val_acc"], 64); err == nil {
		bestParams := s.model.Params().Clone()
		if best.Len() > 0 {
			if err := bestParams.Load(best); err != nil {
				return fmt.Errorf("checkpoint %s: best parameters: %w", path, err)
			}
		}
		s.bestValAcc = acc
		s.bestParams = bestParams
	}

	if lr, err := strconv.ParseFloat(meta["learning_rate"], 64); err == nil {
		s.optim.SetLR(lr)
	}
	if epoch, err := strconv.Atoi(meta["epoch"]); err == nil {
		s.epoch = epoch
	}
	return nil
}
