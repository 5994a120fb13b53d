package trainer

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"ganforge/internal/checkpoint"
	"ganforge/internal/dataset"
	"ganforge/internal/device"
	"ganforge/internal/metrics"
	"ganforge/internal/model"
	"ganforge/internal/nn"
	"ganforge/internal/sampler"
)

// Losses are the scalars produced by one discriminator+generator pair.
type Losses struct {
	D   float64
	G   float64
	Acc float64
	MSE float64
}

// position locates an iteration inside the run.
type position struct {
	epoch   int // zero-based
	iter    int // zero-based, within the epoch
	batches int // declared batches per epoch
	global  int // one-based count of completed iterations
}

// variant is what GAN and AAE plug into the shared loop.
type variant interface {
	iteration(real *mat.Dense) (Losses, error)
	render(n int) (*mat.Dense, error)
	networks() map[string]model.Model
}

// loop owns everything the variants share: configuration, data, rng,
// history and collaborators.
type loop struct {
	cfg       Config
	data      dataset.Source
	rng       *rand.Rand
	opts      options
	device    device.Device
	history   *metrics.History
	nonFinite int
}

func newLoop(cfg Config, data dataset.Source, opts []Option) (*loop, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.New("trainer: nil dataset")
	}
	o := buildOptions(opts)
	var dev device.Device
	if o.device != nil {
		dev = *o.device
	} else {
		var err error
		if dev, err = device.Resolve(cfg.Device); err != nil {
			return nil, errors.Wrap(err, "trainer")
		}
	}
	return &loop{
		cfg:     cfg,
		data:    data,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		opts:    o,
		device:  dev,
		history: o.history,
	}, nil
}

// History returns the log the trainer appends to.
func (l *loop) History() *metrics.History { return l.history }

// NonFinite is the number of iterations that recorded a NaN or Inf loss.
func (l *loop) NonFinite() int { return l.nonFinite }

// noise samples an n×dim matrix from the configured distribution.
func (l *loop) noise(n, dim int) *mat.Dense {
	data := make([]float64, n*dim)
	for i := range data {
		if l.cfg.Noise == NoiseNormal {
			data[i] = l.rng.NormFloat64()
		} else {
			data[i] = l.rng.Float64()
		}
	}
	return mat.NewDense(n, dim, data)
}

func (l *loop) run(ctx context.Context, v variant) (*metrics.History, error) {
	cfg := l.cfg
	var it *dataset.Iterator
	batches := cfg.IterationsPerEpoch
	if cfg.Sampling == SamplingSequential {
		it = dataset.NewIterator(l.data, cfg.realBatch(), cfg.MaxBatches, l.rng)
		batches = it.Batches()
	} else if l.data.Len() == 0 {
		log.Printf("trainer: dataset is empty, no iterations will run")
		batches = 0
	}
	log.Printf("trainer: variant=%s device=%s epochs=%d batches_per_epoch=%d batch_size=%d",
		cfg.Variant, l.device, cfg.Epochs, batches, cfg.BatchSize)

	var window metrics.Window
	start := time.Now()
	global := 0
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		epochStart := time.Now()
		if it != nil && epoch > 0 {
			it.Reset()
		}
		for iter := 0; iter < batches; iter++ {
			if err := ctx.Err(); err != nil {
				return l.history, err
			}

			startData := time.Now()
			var batch model.Batch
			if it != nil {
				var ok bool
				if batch, ok = it.Next(); !ok {
					break
				}
			} else {
				var err error
				if batch, err = dataset.RandomBatch(l.data, cfg.realBatch(), l.rng); err != nil {
					return l.history, err
				}
			}
			dataTime := time.Since(startData)

			startCompute := time.Now()
			losses, err := v.iteration(batch.Samples)
			if err != nil {
				return l.history, err
			}
			computeTime := time.Since(startCompute)
			global++
			window.Record(batch.Len(), dataTime, computeTime, losses.D, losses.G)

			pos := position{epoch: epoch, iter: iter, batches: batches, global: global}
			l.record(pos, losses)
			if cfg.SaveInterval > 0 && global%cfg.SaveInterval == 0 {
				l.sample(v, global)
			}
		}
		l.history.Append(metrics.PerEpochTime, time.Since(epochStart).Seconds())
		if window.Steps() > 0 {
			snap := window.Snapshot()
			log.Printf("epoch=%d iterations=%d samples_per_sec=%.1f data_ms=%.2f compute_ms=%.2f d_loss=%.4f g_loss=%.4f",
				epoch+1, global, snap.SamplesPerSec, snap.AvgDataMS, snap.AvgComputeMS, snap.LastDLoss, snap.LastGLoss)
		}
		if cfg.SaveInterval == 0 {
			l.sample(v, epoch+1)
		}
	}
	total := time.Since(start).Seconds()
	l.history.Append(metrics.TotalTime, total)
	log.Printf("trainer: finished %d iterations in %.1fs (%d non-finite)", global, total, l.nonFinite)

	if err := l.finish(v); err != nil {
		return l.history, err
	}
	return l.history, nil
}

type scalar struct {
	name string
	v    float64
}

// record appends one iteration to the history, prints progress and feeds the
// scalar logger. Logger failures are reported and otherwise ignored.
func (l *loop) record(pos position, r Losses) {
	scalars := []scalar{{metrics.DLoss, r.D}, {metrics.GLoss, r.G}}
	if l.cfg.Variant != VariantGAN {
		scalars = append(scalars, scalar{metrics.DAcc, r.Acc})
	}
	if l.cfg.Variant == VariantAAE {
		scalars = append(scalars, scalar{metrics.MSE, r.MSE})
	}

	finite := true
	for _, s := range scalars {
		l.history.Append(s.name, s.v)
		if !nn.Finite(s.v) {
			finite = false
		}
	}
	if !finite {
		l.nonFinite++
		log.Printf("trainer: non-finite loss at iteration %d: d_loss=%v g_loss=%v", pos.global, r.D, r.G)
	}

	if pos.global%l.cfg.LogEvery != 0 {
		return
	}
	fmt.Fprintln(l.opts.progress, progressLine(l.cfg.Variant, pos, r))
	if l.opts.logger == nil {
		return
	}
	for _, s := range scalars {
		if err := l.opts.logger.Log(s.name, s.v, pos.global); err != nil {
			log.Printf("trainer: scalar logger failed at iteration %d: %v", pos.global, err)
			break
		}
	}
}

// sample invokes the sampler; failures never abort training.
func (l *loop) sample(v variant, step int) {
	if l.opts.sampler == nil {
		return
	}
	if err := l.opts.sampler.Sample(step, v.render); err != nil {
		log.Printf("trainer: sampler failed at step %d: %v", step, err)
	}
}

func (l *loop) checkpointPath(suffix string) string {
	return filepath.Join(l.cfg.SaveDir, l.cfg.DatasetName, l.cfg.ModelName+"_"+suffix)
}

// resume loads every network from SaveDir.
func (l *loop) resume(v variant) error {
	for suffix, m := range v.networks() {
		path := l.checkpointPath(suffix + ".gob")
		if err := checkpoint.LoadParams(path, m.Params()); err != nil {
			return errors.Wrapf(err, "trainer: resume %s", suffix)
		}
		log.Printf("trainer: resumed %s from %s", suffix, path)
	}
	return nil
}

// finish writes checkpoints and the loss plot when configured.
func (l *loop) finish(v variant) error {
	if l.cfg.PlotPath != "" {
		if err := sampler.PlotHistory(l.history, l.cfg.PlotPath); err != nil {
			log.Printf("trainer: loss plot failed: %v", err)
		}
	}
	if l.cfg.SaveDir == "" {
		return nil
	}
	for suffix, m := range v.networks() {
		if err := checkpoint.SaveParams(l.checkpointPath(suffix+".gob"), m.Params()); err != nil {
			return errors.Wrapf(err, "trainer: save %s", suffix)
		}
	}
	if err := checkpoint.SaveHistory(l.checkpointPath("history.json"), l.history); err != nil {
		return errors.Wrap(err, "trainer: save history")
	}
	return nil
}

// scale multiplies m in place and returns it.
func scale(f float64, m *mat.Dense) *mat.Dense {
	if f != 1 {
		m.Scale(f, m)
	}
	return m
}
