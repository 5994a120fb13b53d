package trainer

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"ganforge/internal/dataset"
	"ganforge/internal/metrics"
	"ganforge/internal/model"
	"ganforge/internal/nn"
)

// GAN trains a generator against a discriminator on data samples. It serves
// both the gan and dcgan variants.
type GAN struct {
	*loop
	gen     *model.Generator
	disc    *model.Discriminator
	gOpt    nn.Optimizer
	dOpt    nn.Optimizer
	sampleZ *mat.Dense
}

// NewGAN wires a generator and discriminator to data. Each network gets its
// own optimizer (Adam unless configured otherwise) over its own parameters only.
func NewGAN(cfg Config, data dataset.Source, gen *model.Generator, disc *model.Discriminator, opts ...Option) (*GAN, error) {
	if cfg.Variant == "" {
		cfg.Variant = VariantGAN
	}
	if cfg.Variant == VariantAAE {
		return nil, errors.New("trainer: NewGAN cannot run the aae variant")
	}
	l, err := newLoop(cfg, data, opts)
	if err != nil {
		return nil, err
	}
	if gen == nil || disc == nil {
		return nil, errors.New("trainer: generator and discriminator are required")
	}
	shape := data.Shape()
	if gen.Shape.Size() != shape.Size() {
		return nil, errors.Wrapf(model.ErrShapeMismatch, "[Generator] output %v, dataset %v", gen.Shape, shape)
	}
	if disc.InputSize() != shape.Size() {
		return nil, errors.Wrapf(model.ErrShapeMismatch, "[Discriminator] input %d, dataset %v", disc.InputSize(), shape)
	}
	g := &GAN{
		loop: l,
		gen:  gen,
		disc: disc,
		gOpt: l.cfg.newOptimizer(gen.Params(), l.cfg.LearningRateG),
		dOpt: l.cfg.newOptimizer(disc.Params(), l.cfg.LearningRateD),
	}
	if l.cfg.Resume {
		if err := l.resume(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Run trains for the configured epochs and returns the history.
func (g *GAN) Run(ctx context.Context) (*metrics.History, error) {
	return g.run(ctx, g)
}

// DiscriminatorStep scores real against freshly generated samples and applies
// one discriminator update. It returns the combined loss and the accuracy.
// Shape errors are returned before any parameter changes.
func (g *GAN) DiscriminatorStep(real *mat.Dense) (loss, acc float64, err error) {
	if err := g.disc.Check(real); err != nil {
		return 0, 0, err
	}
	n, _ := real.Dims()
	fake, err := g.gen.Generate(g.noise(n, g.gen.LatentDim))
	if err != nil {
		return 0, 0, err
	}
	if err := g.disc.Check(fake); err != nil {
		return 0, 0, err
	}
	return discriminatorUpdate(g.disc, g.dOpt, real, fake, g.cfg.reductionWeight())
}

// GeneratorStep generates a fresh batch and updates the generator so the
// discriminator scores it as real. Discriminator parameters are left as is.
func (g *GAN) GeneratorStep() (float64, error) {
	g.gen.ZeroGrad()
	g.disc.ZeroGrad()
	fake, err := g.gen.Generate(g.noise(g.cfg.BatchSize, g.gen.LatentDim))
	if err != nil {
		return 0, err
	}
	if err := g.disc.Check(fake); err != nil {
		return 0, err
	}
	pred, err := g.disc.Score(fake)
	if err != nil {
		return 0, err
	}
	n, _ := pred.Dims()
	loss, grad := nn.BCE(pred, nn.Labels(n, 1))
	dx, err := g.disc.Backward(grad)
	if err != nil {
		return 0, err
	}
	if _, err := g.gen.Backward(dx); err != nil {
		return 0, err
	}
	g.gOpt.Step()
	return loss, nil
}

func (g *GAN) iteration(real *mat.Dense) (Losses, error) {
	dLoss, acc, err := g.DiscriminatorStep(real)
	if err != nil {
		return Losses{}, err
	}
	gLoss, err := g.GeneratorStep()
	if err != nil {
		return Losses{}, err
	}
	return Losses{D: dLoss, G: gLoss, Acc: acc}, nil
}

// render generates n samples. The gan variant reuses one fixed noise batch so
// successive grids are comparable; dcgan draws fresh noise each time.
func (g *GAN) render(n int) (*mat.Dense, error) {
	if g.cfg.Variant != VariantGAN {
		return g.gen.Generate(g.noise(n, g.gen.LatentDim))
	}
	if r, _ := dims(g.sampleZ); r != n {
		g.sampleZ = g.noise(n, g.gen.LatentDim)
	}
	return g.gen.Generate(g.sampleZ)
}

func (g *GAN) networks() map[string]model.Model {
	return map[string]model.Model{"G": g.gen, "D": g.disc}
}

// discriminatorUpdate accumulates the real and fake terms, each weighted by w,
// and applies one optimizer step.
func discriminatorUpdate(disc *model.Discriminator, opt nn.Optimizer, real, fake *mat.Dense, w float64) (loss, acc float64, err error) {
	disc.ZeroGrad()

	predReal, err := disc.Score(real)
	if err != nil {
		return 0, 0, err
	}
	nReal, _ := predReal.Dims()
	ones := nn.Labels(nReal, 1)
	lossReal, gradReal := nn.BCE(predReal, ones)
	if _, err := disc.Backward(scale(w, gradReal)); err != nil {
		return 0, 0, err
	}

	predFake, err := disc.Score(fake)
	if err != nil {
		return 0, 0, err
	}
	nFake, _ := predFake.Dims()
	zeros := nn.Labels(nFake, 0)
	lossFake, gradFake := nn.BCE(predFake, zeros)
	if _, err := disc.Backward(scale(w, gradFake)); err != nil {
		return 0, 0, err
	}

	opt.Step()

	hits := nn.BinaryAccuracy(predReal, ones)*float64(nReal) + nn.BinaryAccuracy(predFake, zeros)*float64(nFake)
	return w * (lossReal + lossFake), hits / float64(nReal+nFake), nil
}

func dims(m *mat.Dense) (int, int) {
	if m == nil {
		return 0, 0
	}
	return m.Dims()
}
