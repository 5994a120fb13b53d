package nn

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when an input batch does not have the width a
// network was built for.
var ErrShapeMismatch = errors.New("shape mismatch")

// Network is a sequential stack of layers with a fixed input and output width.
type Network struct {
	Name   string
	Layers []Layer
	in     int
	out    int
}

// NewNetwork stacks layers on top of an input of width in.
func NewNetwork(name string, in int, layers ...Layer) *Network {
	n := &Network{Name: name, Layers: layers, in: in}
	width := in
	for _, l := range layers {
		width = l.OutSize(width)
	}
	n.out = width
	return n
}

// In returns the input width.
func (n *Network) In() int { return n.in }

// Out returns the output width.
func (n *Network) Out() int { return n.out }

// Forward runs x through every layer.
func (n *Network) Forward(x *mat.Dense) (*mat.Dense, error) {
	if x == nil {
		return nil, errors.Wrapf(ErrShapeMismatch, "%s: nil input", n.Name)
	}
	if _, cols := x.Dims(); cols != n.in {
		return nil, errors.Wrapf(ErrShapeMismatch, "%s: input width %d, want %d", n.Name, cols, n.in)
	}
	out := x
	for _, l := range n.Layers {
		out = l.Forward(out)
	}
	return out, nil
}

// Backward propagates grad from the output back to the input, accumulating
// parameter gradients on the way, and returns the gradient w.r.t. the input.
func (n *Network) Backward(grad *mat.Dense) (*mat.Dense, error) {
	if _, cols := grad.Dims(); cols != n.out {
		return nil, errors.Wrapf(ErrShapeMismatch, "%s: output grad width %d, want %d", n.Name, cols, n.out)
	}
	for i := len(n.Layers) - 1; i >= 0; i-- {
		grad = n.Layers[i].Backward(grad)
	}
	return grad, nil
}

// Params returns every trainable parameter in layer order.
func (n *Network) Params() []*Param {
	var params []*Param
	for _, l := range n.Layers {
		params = append(params, l.Params()...)
	}
	return params
}

// ZeroGrad clears accumulated gradients on all parameters.
func (n *Network) ZeroGrad() {
	for _, p := range n.Params() {
		p.ZeroGrad()
	}
}

func (n *Network) String() string {
	s := make([]string, 0, len(n.Layers)+1)
	s = append(s, fmt.Sprintf("== %s (%d params) ==", n.Name, CountParams(n.Params())))
	width := n.in
	for i, l := range n.Layers {
		s = append(s, fmt.Sprintf("%2d: %-25s [%d]", i, l, width))
		width = l.OutSize(width)
	}
	return strings.Join(s, "\n")
}
