package trainer

import (
	"context"
	"log"
	"math/rand"

	"github.com/pkg/errors"

	"ganforge/internal/dataset"
	"ganforge/internal/metrics"
	"ganforge/internal/model"
)

// RunConfig adds the network topology to Config.
type RunConfig struct {
	Config
	LatentDim int
	GHidden   []int
	DHidden   []int
	Output    model.OutputActivation
}

// Trainer is a constructed GAN or AAE.
type Trainer interface {
	Run(ctx context.Context) (*metrics.History, error)
	History() *metrics.History
	NonFinite() int
}

// Build constructs the networks for rc over data and returns the trainer.
// Weights are initialised from rc.Seed.
func Build(rc RunConfig, data dataset.Source, opts ...Option) (Trainer, error) {
	if data == nil {
		return nil, errors.New("trainer: nil dataset")
	}
	rng := rand.New(rand.NewSource(rc.Seed))
	shape := data.Shape()
	if rc.Variant == VariantAAE {
		enc := model.NewEncoder(shape, rc.LatentDim, rc.GHidden, rng)
		dec := model.NewDecoder(rc.LatentDim, shape, reversed(rc.GHidden), rc.Output, rng)
		disc := model.NewDiscriminator(rc.LatentDim, rc.DHidden, rng)
		log.Printf("%s\n%s\n%s", enc, dec, disc)
		a, err := NewAAE(rc.Config, data, enc, dec, disc, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	gen := model.NewGenerator(rc.LatentDim, shape, rc.GHidden, rc.Output, rng)
	disc := model.NewDiscriminator(shape.Size(), rc.DHidden, rng)
	log.Printf("%s\n%s", gen, disc)
	g, err := NewGAN(rc.Config, data, gen, disc, opts...)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Run builds and trains in one call.
func Run(ctx context.Context, rc RunConfig, data dataset.Source, opts ...Option) (*metrics.History, error) {
	t, err := Build(rc, data, opts...)
	if err != nil {
		return nil, err
	}
	return t.Run(ctx)
}

func reversed(in []int) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
