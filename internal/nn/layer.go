package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Layer is one stage of a sequential network. Forward caches whatever Backward
// needs, so a Backward call always refers to the most recent Forward.
type Layer interface {
	Forward(x *mat.Dense) *mat.Dense
	Backward(grad *mat.Dense) *mat.Dense
	Params() []*Param
	OutSize(in int) int
	String() string
}

// Dense is a fully connected layer computing x*W + b.
type Dense struct {
	In, Out int
	W, B    *Param
	input   *mat.Dense
}

// NewDense creates a dense layer with Glorot normal weights and zero bias.
func NewDense(name string, in, out int, rng *rand.Rand) *Dense {
	d := &Dense{
		In:  in,
		Out: out,
		W:   newParam(name+".w", in, out),
		B:   newParam(name+".b", 1, out),
	}
	scale := math.Sqrt(2.0 / float64(in+out))
	data := d.W.Value.RawMatrix().Data
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	return d
}

func (d *Dense) Forward(x *mat.Dense) *mat.Dense {
	d.input = x
	out := &mat.Dense{}
	out.Mul(x, d.W.Value)
	rows, _ := out.Dims()
	bias := d.B.Value.RawRowView(0)
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] += bias[j]
		}
	}
	return out
}

func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	var dw mat.Dense
	dw.Mul(d.input.T(), grad)
	d.W.Grad.Add(d.W.Grad, &dw)

	rows, _ := grad.Dims()
	db := d.B.Grad.RawRowView(0)
	for i := 0; i < rows; i++ {
		for j, g := range grad.RawRowView(i) {
			db[j] += g
		}
	}

	dx := &mat.Dense{}
	dx.Mul(grad, d.W.Value.T())
	return dx
}

func (d *Dense) Params() []*Param { return []*Param{d.W, d.B} }

func (d *Dense) OutSize(int) int { return d.Out }

func (d *Dense) String() string { return fmt.Sprintf("dense %d->%d", d.In, d.Out) }

// activation is an element-wise layer described by its function and derivative.
// The derivative receives both the input and the output of the forward pass.
type activation struct {
	name  string
	fn    func(x float64) float64
	deriv func(x, y float64) float64
	in    *mat.Dense
	out   *mat.Dense
}

func (a *activation) Forward(x *mat.Dense) *mat.Dense {
	a.in = x
	out := &mat.Dense{}
	out.Apply(func(_, _ int, v float64) float64 { return a.fn(v) }, x)
	a.out = out
	return out
}

func (a *activation) Backward(grad *mat.Dense) *mat.Dense {
	dx := &mat.Dense{}
	dx.Apply(func(i, j int, g float64) float64 {
		return g * a.deriv(a.in.At(i, j), a.out.At(i, j))
	}, grad)
	return dx
}

func (a *activation) Params() []*Param { return nil }

func (a *activation) OutSize(in int) int { return in }

func (a *activation) String() string { return a.name }

// LeakyReLU passes positive inputs and scales negative ones by alpha.
func LeakyReLU(alpha float64) Layer {
	return &activation{
		name: fmt.Sprintf("leaky_relu(%g)", alpha),
		fn: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return alpha * x
		},
		deriv: func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return alpha
		},
	}
}

// ReLU clamps negative inputs to zero.
func ReLU() Layer {
	return &activation{
		name: "relu",
		fn:   func(x float64) float64 { return math.Max(0, x) },
		deriv: func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	}
}

// Tanh squashes into (-1, 1).
func Tanh() Layer {
	return &activation{
		name:  "tanh",
		fn:    math.Tanh,
		deriv: func(_, y float64) float64 { return 1 - y*y },
	}
}

// Sigmoid squashes into (0, 1).
func Sigmoid() Layer {
	return &activation{
		name:  "sigmoid",
		fn:    sigmoid,
		deriv: func(_, y float64) float64 { return y * (1 - y) },
	}
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
