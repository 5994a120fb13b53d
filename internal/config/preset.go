package config

import "github.com/pkg/errors"

// Preset returns the defaults of a variant for 28x28 MNIST. An empty variant
// selects gan.
func Preset(variant string) (*Config, error) {
	base := Config{
		Dataset:       DatasetMNIST,
		DatasetName:   "mnist",
		MNISTImages:   "data/mnist/train-images-idx3-ubyte.gz",
		MNISTLabels:   "data/mnist/train-labels-idx1-ubyte.gz",
		NumWorkers:    2,
		ImageHeight:   28,
		ImageWidth:    28,
		Channels:      1,
		Optimizer:     "adam",
		Beta1:         0.5,
		Beta2:         0.999,
		SampleRows:    5,
		SampleCols:    5,
		SampleDir:     "images",
		Seed:          42,
		Device:        "auto",
		Normalization: "symmetric",
	}
	switch variant {
	case "", VariantGAN:
		base.Variant = VariantGAN
		base.Epochs = 25
		base.BatchSize = 64
		base.LogEvery = 100
		base.Sampling = "sequential"
		base.DReduction = "sum"
		base.LearningRateG = 0.0004
		base.LearningRateD = 0.0004
		base.LatentDim = 62
		base.Noise = "uniform"
		base.OutputActivation = "sigmoid"
		base.Normalization = "unit"
		base.GHidden = []int{1024, 512}
		base.DHidden = []int{512, 256}
		base.SampleRows = 4
		base.SampleCols = 4
		base.SampleDir = "results"
		base.SaveDir = "models"
		base.ModelName = "GAN"
		base.PlotPath = "results/mnist/GAN_loss.png"
	case VariantDCGAN:
		base.Variant = VariantDCGAN
		base.Epochs = 4000
		base.BatchSize = 32
		base.SaveInterval = 200
		base.LogEvery = 1
		base.Sampling = "random"
		base.IterationsPerEpoch = 1
		base.HalfBatch = true
		base.DReduction = "mean"
		base.LearningRateG = 0.0002
		base.LearningRateD = 0.0002
		base.LatentDim = 100
		base.Noise = "normal"
		base.OutputActivation = "tanh"
		base.GHidden = []int{256, 512, 1024}
		base.DHidden = []int{512, 256}
		base.ModelName = "dcgan"
	case VariantAAE:
		base.Variant = VariantAAE
		base.Epochs = 20000
		base.BatchSize = 32
		base.SaveInterval = 200
		base.LogEvery = 1
		base.Sampling = "random"
		base.IterationsPerEpoch = 1
		base.HalfBatch = true
		base.DReduction = "mean"
		base.LearningRateG = 0.0002
		base.LearningRateD = 0.0002
		base.LatentDim = 10
		base.Noise = "normal"
		base.OutputActivation = "tanh"
		base.GHidden = []int{512, 512}
		base.DHidden = []int{512, 512}
		base.ReconWeight = 0.999
		base.AdvWeight = 0.001
		base.SampleDir = "aae/images"
		base.ModelName = "aae"
	default:
		return nil, errors.Wrapf(ErrInvalid, "unknown variant %q", variant)
	}
	return &base, nil
}
