package model

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"ganforge/internal/nn"
)

// OutputActivation selects the squashing function applied to generated samples.
type OutputActivation string

const (
	OutputSigmoid OutputActivation = "sigmoid"
	OutputTanh    OutputActivation = "tanh"
)

func (a OutputActivation) layer() nn.Layer {
	if a == OutputTanh {
		return nn.Tanh()
	}
	return nn.Sigmoid()
}

const leakySlope = 0.2

func stack(prefix string, in int, hidden []int, act func() nn.Layer, rng *rand.Rand) ([]nn.Layer, int) {
	var layers []nn.Layer
	width := in
	for i, h := range hidden {
		layers = append(layers, nn.NewDense(fmt.Sprintf("%s.fc%d", prefix, i), width, h, rng), act())
		width = h
	}
	return layers, width
}

func leaky() nn.Layer { return nn.LeakyReLU(leakySlope) }

// Generator maps latent vectors to synthetic samples.
type Generator struct {
	LatentDim int
	Shape     Shape
	net       *nn.Network
}

// NewGenerator builds an MLP generator: latent -> hidden... -> sample.
func NewGenerator(latentDim int, shape Shape, hidden []int, out OutputActivation, rng *rand.Rand) *Generator {
	layers, width := stack("G", latentDim, hidden, nn.ReLU, rng)
	layers = append(layers, nn.NewDense("G.out", width, shape.Size(), rng), out.layer())
	return &Generator{
		LatentDim: latentDim,
		Shape:     shape,
		net:       nn.NewNetwork("generator", latentDim, layers...),
	}
}

// Generate runs a batch of latent vectors through the generator.
func (g *Generator) Generate(z *mat.Dense) (*mat.Dense, error) {
	out, err := g.net.Forward(z)
	if err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	return out, nil
}

// Backward propagates the gradient of a loss w.r.t. the last generated batch.
func (g *Generator) Backward(grad *mat.Dense) (*mat.Dense, error) {
	dz, err := g.net.Backward(grad)
	if err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	return dz, nil
}

func (g *Generator) Params() []*nn.Param { return g.net.Params() }
func (g *Generator) ZeroGrad()           { g.net.ZeroGrad() }
func (g *Generator) String() string      { return g.net.String() }

// Discriminator scores inputs with the probability that they are real.
// Its input is a data sample for GAN/DCGAN and a latent code for the AAE.
type Discriminator struct {
	net *nn.Network
}

// NewDiscriminator builds an MLP discriminator over inputs of width in.
func NewDiscriminator(in int, hidden []int, rng *rand.Rand) *Discriminator {
	layers, width := stack("D", in, hidden, leaky, rng)
	layers = append(layers, nn.NewDense("D.out", width, 1, rng), nn.Sigmoid())
	return &Discriminator{net: nn.NewNetwork("discriminator", in, layers...)}
}

// InputSize is the width the discriminator accepts.
func (d *Discriminator) InputSize() int { return d.net.In() }

// Check validates a batch against the input contract without touching the network.
func (d *Discriminator) Check(x *mat.Dense) error {
	if x == nil {
		return errors.Wrap(ErrShapeMismatch, "[Discriminator] nil batch")
	}
	if _, cols := x.Dims(); cols != d.net.In() {
		return errors.Wrapf(ErrShapeMismatch, "[Discriminator] batch width %d, want %d", cols, d.net.In())
	}
	return nil
}

// Score returns one probability per input row.
func (d *Discriminator) Score(x *mat.Dense) (*mat.Dense, error) {
	out, err := d.net.Forward(x)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	return out, nil
}

// Backward propagates the gradient w.r.t. the last scores and returns the
// gradient w.r.t. the scored inputs.
func (d *Discriminator) Backward(grad *mat.Dense) (*mat.Dense, error) {
	dx, err := d.net.Backward(grad)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	return dx, nil
}

func (d *Discriminator) Params() []*nn.Param { return d.net.Params() }
func (d *Discriminator) ZeroGrad()           { d.net.ZeroGrad() }
func (d *Discriminator) String() string      { return d.net.String() }

// Encoder maps samples to latent codes.
type Encoder struct {
	Shape     Shape
	LatentDim int
	net       *nn.Network
}

// NewEncoder builds an MLP encoder with a linear latent output.
func NewEncoder(shape Shape, latentDim int, hidden []int, rng *rand.Rand) *Encoder {
	layers, width := stack("E", shape.Size(), hidden, leaky, rng)
	layers = append(layers, nn.NewDense("E.out", width, latentDim, rng))
	return &Encoder{
		Shape:     shape,
		LatentDim: latentDim,
		net:       nn.NewNetwork("encoder", shape.Size(), layers...),
	}
}

// Encode returns the latent code of every sample row.
func (e *Encoder) Encode(x *mat.Dense) (*mat.Dense, error) {
	out, err := e.net.Forward(x)
	if err != nil {
		return nil, errors.Wrap(err, "[Encoder]")
	}
	return out, nil
}

// Backward propagates a gradient w.r.t. the last codes.
func (e *Encoder) Backward(grad *mat.Dense) (*mat.Dense, error) {
	dx, err := e.net.Backward(grad)
	if err != nil {
		return nil, errors.Wrap(err, "[Encoder]")
	}
	return dx, nil
}

func (e *Encoder) Params() []*nn.Param { return e.net.Params() }
func (e *Encoder) ZeroGrad()           { e.net.ZeroGrad() }
func (e *Encoder) String() string      { return e.net.String() }

// Decoder maps latent codes back to samples.
type Decoder struct {
	LatentDim int
	Shape     Shape
	net       *nn.Network
}

// NewDecoder builds an MLP decoder: latent -> hidden... -> sample.
func NewDecoder(latentDim int, shape Shape, hidden []int, out OutputActivation, rng *rand.Rand) *Decoder {
	layers, width := stack("Dec", latentDim, hidden, leaky, rng)
	layers = append(layers, nn.NewDense("Dec.out", width, shape.Size(), rng), out.layer())
	return &Decoder{
		LatentDim: latentDim,
		Shape:     shape,
		net:       nn.NewNetwork("decoder", latentDim, layers...),
	}
}

// Decode reconstructs samples from latent codes.
func (d *Decoder) Decode(z *mat.Dense) (*mat.Dense, error) {
	out, err := d.net.Forward(z)
	if err != nil {
		return nil, errors.Wrap(err, "[Decoder]")
	}
	return out, nil
}

// Backward propagates a gradient w.r.t. the last reconstructions.
func (d *Decoder) Backward(grad *mat.Dense) (*mat.Dense, error) {
	dz, err := d.net.Backward(grad)
	if err != nil {
		return nil, errors.Wrap(err, "[Decoder]")
	}
	return dz, nil
}

func (d *Decoder) Params() []*nn.Param { return d.net.Params() }
func (d *Decoder) ZeroGrad()           { d.net.ZeroGrad() }
func (d *Decoder) String() string      { return d.net.String() }
