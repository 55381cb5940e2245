package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/born-ml/fcnet/internal/gradcheck"
	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/tensor"
)

type gradcheckOptions struct {
	dtype      string
	numInputs  int
	inputDim   int
	hiddenDims []int
	numClasses int
	alpha      float64
	seed       uint64
}

func newGradcheckCmd(a *app) *cobra.Command {
	opts := gradcheckOptions{}

	cmd := &cobra.Command{
		Use:   "gradcheck",
		Short: "Compare analytic gradients against finite differences",
		Long: `Builds both models on a tiny random problem and prints the maximum relative
error between every analytic parameter gradient and its central-difference
estimate. Fully-connected models are checked with and without regularization
and with seeded dropout.

Relative errors around 1e-7 or smaller are expected in float64.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dtype, err := tensor.ParseDataType(opts.dtype)
			if err != nil {
				return err
			}
			if len(opts.hiddenDims) != 2 {
				return fmt.Errorf("--hidden needs exactly 2 sizes, got %v", opts.hiddenDims)
			}
			if dtype == tensor.Float32 {
				return runGradcheck[float32](cmd.OutOrStdout(), opts, a.logger)
			}
			return runGradcheck[float64](cmd.OutOrStdout(), opts, a.logger)
		},
	}

	cmd.Flags().StringVar(&opts.dtype, "dtype", "float64", "Precision: float32 or float64")
	cmd.Flags().IntVar(&opts.numInputs, "num-inputs", 2, "Number of samples")
	cmd.Flags().IntVar(&opts.inputDim, "input-dim", 15, "Features per sample")
	cmd.Flags().IntSliceVar(&opts.hiddenDims, "hidden", []int{20, 30}, "Hidden layer sizes")
	cmd.Flags().IntVar(&opts.numClasses, "classes", 10, "Number of classes")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", 1e-2, "Negative slope of the Leaky ReLU layers")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "Seed of inputs, labels and weights")
	return cmd
}

type gradcheckCase[T tensor.Float] struct {
	name  string
	model nn.Model[T]
}

func gradcheckCases[T tensor.Float](opts gradcheckOptions) ([]gradcheckCase[T], error) {
	var cases []gradcheckCase[T]

	for _, reg := range []float64{0, 0.7} {
		net, err := nn.NewThreeLayerNet[T](nn.ThreeLayerConfig{
			InputDim:    opts.inputDim,
			HiddenDims:  [2]int{opts.hiddenDims[0], opts.hiddenDims[1]},
			NumClasses:  opts.numClasses,
			WeightScale: 5e-2,
			Reg:         reg,
			Alpha:       opts.alpha,
			Seed:        opts.seed,
		})
		if err != nil {
			return nil, err
		}
		cases = append(cases, gradcheckCase[T]{fmt.Sprintf("three_layer reg=%g", reg), net})
	}

	dropoutSeed := uint64(123)
	for _, c := range []struct {
		reg, dropout float64
	}{{0, 1}, {3.14, 1}, {0, 0.25}, {0, 0.5}} {
		cfg := nn.FullyConnectedConfig{
			HiddenDims:  opts.hiddenDims,
			InputDim:    opts.inputDim,
			NumClasses:  opts.numClasses,
			Dropout:     c.dropout,
			Reg:         c.reg,
			Alpha:       opts.alpha,
			WeightScale: 5e-2,
			InitSeed:    opts.seed,
			Seed:        &dropoutSeed,
		}
		net, err := nn.NewFullyConnectedNet[T](cfg)
		if err != nil {
			return nil, err
		}
		cases = append(cases, gradcheckCase[T]{fmt.Sprintf("fc reg=%g dropout=%g", c.reg, c.dropout), net})
	}
	return cases, nil
}

func runGradcheck[T tensor.Float](w io.Writer, opts gradcheckOptions, logger *zap.Logger) error {
	cases, err := gradcheckCases[T](opts)
	if err != nil {
		return err
	}

	src := rand.NewSource(opts.seed)
	x := tensor.Normal[T](src, 0, 1, opts.numInputs, opts.inputDim)
	labels := rand.New(src)
	y := make([]int, opts.numInputs)
	for i := range y {
		y[i] = labels.Intn(opts.numClasses)
	}

	// float32 needs a larger step to stay above rounding noise.
	step := gradcheck.DefaultStep
	if tensor.DataTypeOf[T]() == tensor.Float32 {
		step = 1e-2
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tPARAM\tREL ERROR")
	for _, c := range cases {
		loss, grads, err := c.model.Loss(x, y)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		logger.Debug("Initial loss", zap.String("model", c.name), zap.Float64("loss", loss))

		for _, name := range c.model.Params().Names() {
			num, err := numericGrad(c.model, name, x, y, step)
			if err != nil {
				return fmt.Errorf("%s: %w", c.name, err)
			}
			relErr := gradcheck.RelError(toFloat64(grads.Get(name).Data()), num)
			fmt.Fprintf(tw, "%s\t%s\t%.2e\n", c.name, name, relErr)
		}
	}
	return tw.Flush()
}

// numericGrad estimates the gradient of the loss with respect to the named
// parameter. Values are perturbed in float64 and written back in T.
func numericGrad[T tensor.Float](m nn.Model[T], name string, x *tensor.Dense[T], y []int, step float64) ([]float64, error) {
	p := m.Params().Get(name).Data()
	orig := append([]T(nil), p...)
	vals := toFloat64(p)

	var lossErr error
	num := gradcheck.Numeric(func() float64 {
		for i, v := range vals {
			p[i] = T(v)
		}
		loss, _, err := m.Loss(x, y)
		if err != nil && lossErr == nil {
			lossErr = err
		}
		return loss
	}, vals, step)

	copy(p, orig)
	return num, lossErr
}

func toFloat64[T tensor.Float](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
