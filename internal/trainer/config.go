package trainer

import (
	"github.com/pkg/errors"

	"ganforge/internal/nn"
)

// Variant selects the adversarial recipe and its progress format.
type Variant string

const (
	VariantGAN   Variant = "gan"
	VariantDCGAN Variant = "dcgan"
	VariantAAE   Variant = "aae"
)

// Noise is the latent (or prior) distribution.
type Noise string

const (
	NoiseUniform Noise = "uniform"
	NoiseNormal  Noise = "normal"
)

// Sampling is how real batches are drawn from the dataset.
type Sampling string

const (
	// SamplingSequential walks a reshuffled dataset in fixed batches and drops
	// the trailing partial batch.
	SamplingSequential Sampling = "sequential"
	// SamplingRandom draws IterationsPerEpoch batches uniformly with replacement.
	SamplingRandom Sampling = "random"
)

// Reduction combines the real and fake discriminator losses.
type Reduction string

const (
	ReductionSum  Reduction = "sum"
	ReductionMean Reduction = "mean"
)

// OptimizerKind selects the update rule for every network.
type OptimizerKind string

const (
	OptimizerAdam OptimizerKind = "adam"
	OptimizerSGD  OptimizerKind = "sgd"
)

// Config is the flat configuration handed to a trainer at construction.
type Config struct {
	Variant Variant

	Epochs       int
	BatchSize    int
	SaveInterval int // global iterations between samples; 0 samples after every epoch
	LogEvery     int

	Sampling           Sampling
	IterationsPerEpoch int
	MaxBatches         int
	HalfBatch          bool
	Reduction          Reduction

	Optimizer     OptimizerKind
	LearningRateG float64
	LearningRateD float64
	Beta1         float64
	Beta2         float64
	Momentum      float64 // sgd only

	Noise       Noise
	ReconWeight float64
	AdvWeight   float64

	Seed   int64
	Device string

	DatasetName string
	ModelName   string
	SaveDir     string
	PlotPath    string
	Resume      bool
}

func (c *Config) validate() error {
	switch c.Variant {
	case VariantGAN, VariantDCGAN, VariantAAE:
	default:
		return errors.Errorf("trainer: unknown variant %q", c.Variant)
	}
	if c.Epochs <= 0 {
		return errors.New("trainer: epochs must be > 0")
	}
	if c.BatchSize <= 0 {
		return errors.New("trainer: batch size must be > 0")
	}
	if c.HalfBatch && c.BatchSize < 2 {
		return errors.New("trainer: half batch needs batch size >= 2")
	}
	if c.SaveInterval < 0 {
		return errors.New("trainer: save interval must be >= 0")
	}
	if c.Resume && c.SaveDir == "" {
		return errors.New("trainer: resume needs a save dir")
	}
	if c.LearningRateG <= 0 || c.LearningRateD <= 0 {
		return errors.New("trainer: learning rates must be > 0")
	}
	switch c.Optimizer {
	case OptimizerAdam, OptimizerSGD:
	case "":
		c.Optimizer = OptimizerAdam
	default:
		return errors.Errorf("trainer: unknown optimizer %q", c.Optimizer)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return errors.New("trainer: momentum must be in [0, 1)")
	}
	switch c.Noise {
	case NoiseUniform, NoiseNormal:
	default:
		return errors.Errorf("trainer: unknown noise %q", c.Noise)
	}
	switch c.Sampling {
	case SamplingSequential:
	case SamplingRandom:
		if c.IterationsPerEpoch <= 0 {
			c.IterationsPerEpoch = 1
		}
	default:
		return errors.Errorf("trainer: unknown sampling %q", c.Sampling)
	}
	switch c.Reduction {
	case ReductionSum, ReductionMean:
	case "":
		c.Reduction = ReductionSum
	default:
		return errors.Errorf("trainer: unknown reduction %q", c.Reduction)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	if c.ModelName == "" {
		c.ModelName = string(c.Variant)
	}
	return nil
}

// newOptimizer builds the configured optimizer over params.
func (c *Config) newOptimizer(params []*nn.Param, lr float64) nn.Optimizer {
	if c.Optimizer == OptimizerSGD {
		return nn.NewSGD(params, lr, c.Momentum)
	}
	return nn.NewAdam(params, lr, c.Beta1, c.Beta2)
}

// realBatch is the number of real samples scored per discriminator step.
func (c *Config) realBatch() int {
	if c.HalfBatch {
		return c.BatchSize / 2
	}
	return c.BatchSize
}

// reductionWeight scales each of the two discriminator terms.
func (c *Config) reductionWeight() float64 {
	if c.Reduction == ReductionMean {
		return 0.5
	}
	return 1
}
