package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Variants.
const (
	VariantGAN   = "gan"
	VariantDCGAN = "dcgan"
	VariantAAE   = "aae"
)

// Dataset kinds.
const (
	DatasetMNIST     = "mnist"
	DatasetShards    = "shards"
	DatasetSynthetic = "synthetic"
)

// EnvPrefix is the prefix of environment overrides, e.g. GANFORGE_SEED.
const EnvPrefix = "GANFORGE_"

// Config captures the runtime knobs for a training run.
type Config struct {
	Variant string `yaml:"variant"`

	// data
	Dataset       string   `yaml:"dataset"`
	DatasetName   string   `yaml:"dataset_name"`
	MNISTImages   string   `yaml:"mnist_images"`
	MNISTLabels   string   `yaml:"mnist_labels"`
	ShardRoots    []string `yaml:"shard_roots"`
	NumWorkers    int      `yaml:"num_workers"`
	ImageHeight   int      `yaml:"image_height"`
	ImageWidth    int      `yaml:"image_width"`
	Channels      int      `yaml:"channels"`
	Normalization string   `yaml:"normalization"`
	Limit         int      `yaml:"limit"`

	// loop
	Epochs             int    `yaml:"epochs"`
	BatchSize          int    `yaml:"batch_size"`
	SaveInterval       int    `yaml:"save_interval"`
	LogEvery           int    `yaml:"log_every"`
	IterationsPerEpoch int    `yaml:"iterations_per_epoch"`
	MaxBatches         int    `yaml:"max_batches"`
	Sampling           string `yaml:"sampling"`
	HalfBatch          bool   `yaml:"half_batch"`
	DReduction         string `yaml:"d_reduction"`

	// optimisation
	Optimizer     string  `yaml:"optimizer"`
	LearningRateG float64 `yaml:"lr_g"`
	LearningRateD float64 `yaml:"lr_d"`
	Beta1         float64 `yaml:"beta1"`
	Beta2         float64 `yaml:"beta2"`
	Momentum      float64 `yaml:"momentum"`

	// model
	LatentDim        int     `yaml:"latent_dim"`
	Noise            string  `yaml:"noise"`
	OutputActivation string  `yaml:"output_activation"`
	GHidden          []int   `yaml:"g_hidden"`
	DHidden          []int   `yaml:"d_hidden"`
	ReconWeight      float64 `yaml:"recon_weight"`
	AdvWeight        float64 `yaml:"adv_weight"`

	// outputs
	SampleRows    int    `yaml:"sample_rows"`
	SampleCols    int    `yaml:"sample_cols"`
	SampleDir     string `yaml:"sample_dir"`
	SaveDir       string `yaml:"save_dir"`
	ModelName     string `yaml:"model_name"`
	PlotPath      string `yaml:"plot_path"`
	DashboardAddr string `yaml:"dashboard_addr"`
	Resume        bool   `yaml:"resume"`

	Seed   int64  `yaml:"seed"`
	Device string `yaml:"device"`
}

// Overrides captures CLI supplied values. Zero values are ignored, except
// for SaveInterval where nil means unset and 0 selects per-epoch sampling.
type Overrides struct {
	Variant       string
	Dataset       string
	MNISTImages   string
	MNISTLabels   string
	ShardRoots    []string
	Epochs        int
	BatchSize     int
	SaveInterval  *int
	LogEvery      int
	NumWorkers    int
	Limit         int
	Seed          int64
	Device        string
	Optimizer     string
	SampleDir     string
	SaveDir       string
	DashboardAddr string
	Resume        bool
}

// Load reads a Config from YAML on top of the preset for its variant, then
// applies .env and GANFORGE_* environment overrides. The result is not yet
// validated so callers can layer flag overrides first.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	var probe struct {
		Variant string `yaml:"variant"`
	}
	if err := yaml.NewDecoder(f).Decode(&probe); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	cfg, err := Preset(probe.Variant)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, errors.Wrap(err, "rewind config")
	}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	if err := LoadEnvFile(); err != nil {
		return nil, errors.Wrap(err, "load .env")
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads the first .env found in the working directory or up to
// four of its parents. A missing file is not an error.
func LoadEnvFile() error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return godotenv.Load(envPath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil
}

// ApplyEnv applies GANFORGE_* variables looked up through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := map[string]*string{
		"DEVICE":         &c.Device,
		"OPTIMIZER":      &c.Optimizer,
		"DATASET":        &c.Dataset,
		"MNIST_IMAGES":   &c.MNISTImages,
		"MNIST_LABELS":   &c.MNISTLabels,
		"SAMPLE_DIR":     &c.SampleDir,
		"SAVE_DIR":       &c.SaveDir,
		"DASHBOARD_ADDR": &c.DashboardAddr,
	}
	for key, dst := range str {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	ints := map[string]*int{
		"EPOCHS":        &c.Epochs,
		"BATCH_SIZE":    &c.BatchSize,
		"SAVE_INTERVAL": &c.SaveInterval,
		"LOG_EVERY":     &c.LogEvery,
		"NUM_WORKERS":   &c.NumWorkers,
		"LIMIT":         &c.Limit,
	}
	for key, dst := range ints {
		v := getenv(EnvPrefix + key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(ErrInvalid, "%s%s: %v", EnvPrefix, key, err)
		}
		*dst = n
	}
	if v := getenv(EnvPrefix + "SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(ErrInvalid, "%sSEED: %v", EnvPrefix, err)
		}
		c.Seed = n
	}
	if v := getenv(EnvPrefix + "RESUME"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(ErrInvalid, "%sRESUME: %v", EnvPrefix, err)
		}
		c.Resume = b
	}
	if v := getenv(EnvPrefix + "SHARD_ROOTS"); v != "" {
		c.ShardRoots = strings.Split(v, string(os.PathListSeparator))
	}
	return nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Variant != "" {
		c.Variant = o.Variant
	}
	if o.Dataset != "" {
		c.Dataset = o.Dataset
	}
	if o.MNISTImages != "" {
		c.MNISTImages = o.MNISTImages
	}
	if o.MNISTLabels != "" {
		c.MNISTLabels = o.MNISTLabels
	}
	if len(o.ShardRoots) > 0 {
		c.ShardRoots = o.ShardRoots
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.SaveInterval != nil {
		c.SaveInterval = *o.SaveInterval
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Limit > 0 {
		c.Limit = o.Limit
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Device != "" {
		c.Device = o.Device
	}
	if o.Optimizer != "" {
		c.Optimizer = o.Optimizer
	}
	if o.SampleDir != "" {
		c.SampleDir = o.SampleDir
	}
	if o.SaveDir != "" {
		c.SaveDir = o.SaveDir
	}
	if o.DashboardAddr != "" {
		c.DashboardAddr = o.DashboardAddr
	}
	if o.Resume {
		c.Resume = true
	}
}

// Validate verifies the config is runnable and fills derived defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.Wrap(ErrInvalid, "config is nil")
	}
	switch c.Variant {
	case VariantGAN, VariantDCGAN, VariantAAE:
	default:
		return errors.Wrapf(ErrInvalid, "unknown variant %q", c.Variant)
	}
	switch c.Dataset {
	case DatasetMNIST:
		if c.MNISTImages == "" {
			return errors.Wrap(ErrInvalid, "mnist_images must be set for the mnist dataset")
		}
	case DatasetShards:
		if len(c.ShardRoots) == 0 {
			return errors.Wrap(ErrInvalid, "shard_roots must be set for the shards dataset")
		}
	case DatasetSynthetic:
	default:
		return errors.Wrapf(ErrInvalid, "unknown dataset %q", c.Dataset)
	}
	positive := []struct {
		name string
		v    int
	}{
		{"epochs", c.Epochs},
		{"batch_size", c.BatchSize},
		{"latent_dim", c.LatentDim},
		{"image_height", c.ImageHeight},
		{"image_width", c.ImageWidth},
		{"channels", c.Channels},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return errors.Wrapf(ErrInvalid, "%s must be > 0 (got %d)", p.name, p.v)
		}
	}
	if c.SaveInterval < 0 || c.IterationsPerEpoch < 0 || c.MaxBatches < 0 || c.Limit < 0 || c.NumWorkers < 0 {
		return errors.Wrap(ErrInvalid, "save_interval, iterations_per_epoch, max_batches, limit and num_workers must be >= 0")
	}
	if c.HalfBatch && c.BatchSize < 2 {
		return errors.Wrapf(ErrInvalid, "half_batch needs batch_size >= 2 (got %d)", c.BatchSize)
	}
	if c.LearningRateG <= 0 || c.LearningRateD <= 0 {
		return errors.Wrapf(ErrInvalid, "learning rates must be > 0 (got %g, %g)", c.LearningRateG, c.LearningRateD)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
		return errors.Wrapf(ErrInvalid, "betas must be in [0,1) (got %g, %g)", c.Beta1, c.Beta2)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return errors.Wrapf(ErrInvalid, "momentum must be in [0,1) (got %g)", c.Momentum)
	}
	if c.Optimizer == "" {
		c.Optimizer = "adam"
	}
	if err := oneOf("optimizer", c.Optimizer, "adam", "sgd"); err != nil {
		return err
	}
	if c.ReconWeight < 0 || c.ReconWeight > 1 || c.AdvWeight < 0 || c.AdvWeight > 1 {
		return errors.Wrapf(ErrInvalid, "loss weights must be in [0,1] (got %g, %g)", c.ReconWeight, c.AdvWeight)
	}
	if err := oneOf("noise", c.Noise, "uniform", "normal"); err != nil {
		return err
	}
	if err := oneOf("sampling", c.Sampling, "sequential", "random"); err != nil {
		return err
	}
	if err := oneOf("d_reduction", c.DReduction, "sum", "mean"); err != nil {
		return err
	}
	if err := oneOf("normalization", c.Normalization, "unit", "symmetric"); err != nil {
		return err
	}
	if err := oneOf("output_activation", c.OutputActivation, "sigmoid", "tanh"); err != nil {
		return err
	}
	if c.Sampling == "random" && c.IterationsPerEpoch == 0 {
		c.IterationsPerEpoch = 1
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	if c.SampleRows <= 0 {
		c.SampleRows = 5
	}
	if c.SampleCols <= 0 {
		c.SampleCols = 5
	}
	if len(c.GHidden) == 0 {
		c.GHidden = []int{256, 512}
	}
	if len(c.DHidden) == 0 {
		c.DHidden = []int{512, 256}
	}
	if c.DatasetName == "" {
		c.DatasetName = c.Dataset
	}
	if c.ModelName == "" {
		c.ModelName = c.Variant
	}
	return nil
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return errors.Wrapf(ErrInvalid, "%s must be one of %s (got %q)", field, strings.Join(allowed, ", "), v)
}
