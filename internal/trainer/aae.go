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

// AAE is an adversarial autoencoder: the discriminator separates encoder
// codes from prior samples, and the autoencoder step trades reconstruction
// against fooling it.
type AAE struct {
	*loop
	enc   *model.Encoder
	dec   *model.Decoder
	disc  *model.Discriminator
	aeOpt nn.Optimizer
	dOpt  nn.Optimizer
}

// NewAAE wires encoder, decoder and a latent discriminator to data. The
// autoencoder optimizer owns encoder and decoder parameters only.
func NewAAE(cfg Config, data dataset.Source, enc *model.Encoder, dec *model.Decoder, disc *model.Discriminator, opts ...Option) (*AAE, error) {
	cfg.Variant = VariantAAE
	l, err := newLoop(cfg, data, opts)
	if err != nil {
		return nil, err
	}
	if enc == nil || dec == nil || disc == nil {
		return nil, errors.New("trainer: encoder, decoder and discriminator are required")
	}
	shape := data.Shape()
	if enc.Shape.Size() != shape.Size() || dec.Shape.Size() != shape.Size() {
		return nil, errors.Wrapf(model.ErrShapeMismatch, "[Autoencoder] shapes %v/%v, dataset %v", enc.Shape, dec.Shape, shape)
	}
	if enc.LatentDim != dec.LatentDim || disc.InputSize() != enc.LatentDim {
		return nil, errors.Wrapf(model.ErrShapeMismatch, "[Autoencoder] latent %d/%d, discriminator input %d", enc.LatentDim, dec.LatentDim, disc.InputSize())
	}
	ae := append(append([]*nn.Param(nil), enc.Params()...), dec.Params()...)
	a := &AAE{
		loop:  l,
		enc:   enc,
		dec:   dec,
		disc:  disc,
		aeOpt: l.cfg.newOptimizer(ae, l.cfg.LearningRateG),
		dOpt:  l.cfg.newOptimizer(disc.Params(), l.cfg.LearningRateD),
	}
	if l.cfg.Resume {
		if err := l.resume(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Run trains for the configured epochs and returns the history.
func (a *AAE) Run(ctx context.Context) (*metrics.History, error) {
	return a.run(ctx, a)
}

// DiscriminatorStep trains the discriminator to score prior samples as real
// and the codes of real as fake.
func (a *AAE) DiscriminatorStep(real *mat.Dense) (loss, acc float64, err error) {
	codes, err := a.enc.Encode(real)
	if err != nil {
		return 0, 0, err
	}
	n, _ := codes.Dims()
	prior := a.noise(n, a.enc.LatentDim)
	return discriminatorUpdate(a.disc, a.dOpt, prior, codes, a.cfg.reductionWeight())
}

// AutoencoderStep updates encoder and decoder on
// ReconWeight*MSE(decode(encode(x)), x) + AdvWeight*BCE(D(encode(x)), 1).
// It returns the weighted total and the reconstruction error.
func (a *AAE) AutoencoderStep(real *mat.Dense) (total, mse float64, err error) {
	a.enc.ZeroGrad()
	a.dec.ZeroGrad()
	a.disc.ZeroGrad()

	codes, err := a.enc.Encode(real)
	if err != nil {
		return 0, 0, err
	}
	recon, err := a.dec.Decode(codes)
	if err != nil {
		return 0, 0, err
	}
	validity, err := a.disc.Score(codes)
	if err != nil {
		return 0, 0, err
	}
	n, _ := validity.Dims()
	mse, gradRecon := nn.MSE(recon, real)
	adv, gradAdv := nn.BCE(validity, nn.Labels(n, 1))

	dCodes, err := a.dec.Backward(scale(a.cfg.ReconWeight, gradRecon))
	if err != nil {
		return 0, 0, err
	}
	dAdv, err := a.disc.Backward(scale(a.cfg.AdvWeight, gradAdv))
	if err != nil {
		return 0, 0, err
	}
	dCodes.Add(dCodes, dAdv)
	if _, err := a.enc.Backward(dCodes); err != nil {
		return 0, 0, err
	}
	a.aeOpt.Step()
	return a.cfg.ReconWeight*mse + a.cfg.AdvWeight*adv, mse, nil
}

// Reconstruct encodes then decodes x.
func (a *AAE) Reconstruct(x *mat.Dense) (*mat.Dense, error) {
	codes, err := a.enc.Encode(x)
	if err != nil {
		return nil, err
	}
	return a.dec.Decode(codes)
}

// iteration runs the discriminator on real, then the autoencoder on a fresh
// random batch (or the same batch under sequential sampling).
func (a *AAE) iteration(real *mat.Dense) (Losses, error) {
	dLoss, acc, err := a.DiscriminatorStep(real)
	if err != nil {
		return Losses{}, err
	}
	batch := real
	if a.cfg.Sampling == SamplingRandom {
		n, _ := real.Dims()
		b, err := dataset.RandomBatch(a.data, n, a.rng)
		if err != nil {
			return Losses{}, err
		}
		batch = b.Samples
	}
	total, mse, err := a.AutoencoderStep(batch)
	if err != nil {
		return Losses{}, err
	}
	return Losses{D: dLoss, G: total, Acc: acc, MSE: mse}, nil
}

// render reconstructs n random dataset samples.
func (a *AAE) render(n int) (*mat.Dense, error) {
	b, err := dataset.RandomBatch(a.data, n, a.rng)
	if err != nil {
		return nil, err
	}
	return a.Reconstruct(b.Samples)
}

func (a *AAE) networks() map[string]model.Model {
	return map[string]model.Model{"E": a.enc, "Dec": a.dec, "D": a.disc}
}
