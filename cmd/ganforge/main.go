package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ganforge/internal/config"
	"ganforge/internal/dashboard"
	"ganforge/internal/dataset"
	"ganforge/internal/device"
	"ganforge/internal/metrics"
	"ganforge/internal/model"
	"ganforge/internal/sampler"
	"ganforge/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (defaults to the preset for -variant)")
	variant := flag.String("variant", "", "Variant preset: gan, dcgan or aae")
	datasetKind := flag.String("dataset", "", "Dataset: mnist, shards or synthetic")
	mnistImages := flag.String("mnist-images", "", "Override MNIST IDX image file")
	mnistLabels := flag.String("mnist-labels", "", "Override MNIST IDX label file")
	shardRoots := flag.String("shard-roots", "", "Comma separated WebDataset roots")
	epochs := flag.Int("epochs", 0, "Number of epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	saveInterval := flag.Int("save-interval", 0, "Sample every N iterations (0 samples once per epoch)")
	logEvery := flag.Int("log-every", 0, "Print progress every N iterations")
	numWorkers := flag.Int("num-workers", 0, "Number of shard reader workers")
	limit := flag.Int("limit", 0, "Use at most N samples")
	seed := flag.Int64("seed", 0, "PRNG seed")
	dev := flag.String("device", "", "Device: auto, cpu or gpu")
	optimizer := flag.String("optimizer", "", "Optimizer: adam or sgd")
	sampleDir := flag.String("sample-dir", "", "Directory for sample grids")
	saveDir := flag.String("save-dir", "", "Directory for checkpoints")
	dashAddr := flag.String("dashboard", "", "Serve the dashboard on this address")
	scalars := flag.String("scalars", "", "Append scalars to this TSV file")
	resume := flag.Bool("resume", false, "Load checkpoints from save-dir before training")

	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var cfg *config.Config
	var err error
	if *cfgPath != "" {
		cfg, err = config.Load(*cfgPath)
	} else {
		cfg, err = config.Preset(*variant)
		if err == nil {
			if err = config.LoadEnvFile(); err == nil {
				err = cfg.ApplyEnv(os.Getenv)
			}
		}
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var interval *int
	if set["save-interval"] {
		interval = saveInterval
	}

	var roots []string
	if *shardRoots != "" {
		roots = strings.Split(*shardRoots, ",")
	}
	cfg.ApplyOverrides(config.Overrides{
		Variant:       *variant,
		Dataset:       *datasetKind,
		MNISTImages:   *mnistImages,
		MNISTLabels:   *mnistLabels,
		ShardRoots:    roots,
		Epochs:        *epochs,
		BatchSize:     *batchSize,
		SaveInterval:  interval,
		LogEvery:      *logEvery,
		NumWorkers:    *numWorkers,
		Limit:         *limit,
		Seed:          *seed,
		Device:        *dev,
		Optimizer:     *optimizer,
		SampleDir:     *sampleDir,
		SaveDir:       *saveDir,
		DashboardAddr: *dashAddr,
		Resume:        *resume,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	resolved, err := device.Resolve(cfg.Device)
	if err != nil {
		log.Fatalf("device: %v", err)
	}
	log.Printf("device=%s", resolved)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shape := model.Shape{Height: cfg.ImageHeight, Width: cfg.ImageWidth, Channels: cfg.Channels}
	norm := dataset.Normalization(cfg.Normalization)
	data, err := loadDataset(ctx, cfg, resolved, shape, norm)
	if err != nil {
		log.Fatalf("load dataset: %v", err)
	}
	log.Printf("dataset=%s samples=%d shape=%s", cfg.DatasetName, data.Len(), data.Shape())

	history := metrics.NewHistory()
	grid := &sampler.GridSampler{
		Dir:     cfg.SampleDir,
		Dataset: cfg.DatasetName,
		Model:   cfg.ModelName,
		Shape:   data.Shape(),
		Norm:    norm,
		Rows:    cfg.SampleRows,
		Cols:    cfg.SampleCols,
	}
	var loggers metrics.MultiLogger

	if cfg.DashboardAddr != "" {
		dash := dashboard.New(history)
		grid.Notify = dash.SampleWritten
		loggers = append(loggers, dash)
		go func() {
			if err := dash.Run(ctx, cfg.DashboardAddr); err != nil {
				log.Printf("dashboard stopped: %v", err)
			}
		}()
	}
	if *scalars != "" {
		f, err := os.OpenFile(*scalars, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("open scalar log: %v", err)
		}
		defer f.Close()
		loggers = append(loggers, metrics.LogSink{W: f})
	}

	opts := []trainer.Option{
		trainer.WithSampler(grid),
		trainer.WithDevice(resolved),
		trainer.WithHistory(history),
	}
	if len(loggers) > 0 {
		opts = append(opts, trainer.WithScalarLogger(loggers))
	}

	runCfg := trainer.RunConfig{
		Config:    trainerConfig(cfg),
		LatentDim: cfg.LatentDim,
		GHidden:   cfg.GHidden,
		DHidden:   cfg.DHidden,
		Output:    model.OutputActivation(cfg.OutputActivation),
	}

	if _, err := trainer.Run(ctx, runCfg, data, opts...); err != nil {
		log.Fatalf("training failed: %v", err)
	}
}

func trainerConfig(cfg *config.Config) trainer.Config {
	return trainer.Config{
		Variant:            trainer.Variant(cfg.Variant),
		Epochs:             cfg.Epochs,
		BatchSize:          cfg.BatchSize,
		SaveInterval:       cfg.SaveInterval,
		LogEvery:           cfg.LogEvery,
		Sampling:           trainer.Sampling(cfg.Sampling),
		IterationsPerEpoch: cfg.IterationsPerEpoch,
		MaxBatches:         cfg.MaxBatches,
		HalfBatch:          cfg.HalfBatch,
		Reduction:          trainer.Reduction(cfg.DReduction),
		Optimizer:          trainer.OptimizerKind(cfg.Optimizer),
		Momentum:           cfg.Momentum,
		LearningRateG:      cfg.LearningRateG,
		LearningRateD:      cfg.LearningRateD,
		Beta1:              cfg.Beta1,
		Beta2:              cfg.Beta2,
		Noise:              trainer.Noise(cfg.Noise),
		ReconWeight:        cfg.ReconWeight,
		AdvWeight:          cfg.AdvWeight,
		Seed:               cfg.Seed,
		Device:             cfg.Device,
		DatasetName:        cfg.DatasetName,
		ModelName:          cfg.ModelName,
		SaveDir:            cfg.SaveDir,
		PlotPath:           cfg.PlotPath,
		Resume:             cfg.Resume,
	}
}

func loadDataset(ctx context.Context, cfg *config.Config, dev device.Device, shape model.Shape, norm dataset.Normalization) (dataset.Source, error) {
	switch cfg.Dataset {
	case config.DatasetMNIST:
		src, err := dataset.LoadMNIST(cfg.MNISTImages, cfg.MNISTLabels, norm, cfg.Limit)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.DatasetShards:
		roots, err := dataset.DiscoverByRoot(cfg.ShardRoots)
		if err != nil {
			return nil, err
		}
		for root, shards := range roots {
			log.Printf("root=%s shards=%d", root, len(shards))
		}
		workers := dev.Workers(cfg.NumWorkers)
		log.Printf("shard readers=%d", workers)
		return dataset.LoadShards(ctx, dataset.LoadOptions{
			RootsOptions: dataset.RootsOptions{Roots: roots, Seed: cfg.Seed, NumWorkers: workers},
			Shape:        shape,
			Norm:         norm,
			Limit:        cfg.Limit,
		})
	default:
		n := cfg.Limit
		if n <= 0 {
			n = 1024
		}
		return dataset.Synthetic(shape, n, norm, rand.New(rand.NewSource(cfg.Seed)))
	}
}
