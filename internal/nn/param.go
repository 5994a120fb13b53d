// Package nn holds the small numeric layer stack the adversarial trainer drives:
// dense layers, activations, losses and optimizers over gonum matrices.
// Matrices are laid out with one sample per row.
package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Param is a trainable matrix together with its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, rows, cols int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Snapshot copies the current values of params.
func Snapshot(params []*Param) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = append([]float64(nil), p.Value.RawMatrix().Data...)
	}
	return out
}

// SnapshotEqual reports whether params still hold exactly the values in snap.
func SnapshotEqual(params []*Param, snap [][]float64) bool {
	if len(params) != len(snap) {
		return false
	}
	for i, p := range params {
		data := p.Value.RawMatrix().Data
		if len(data) != len(snap[i]) {
			return false
		}
		for j, v := range data {
			if v != snap[i][j] {
				return false
			}
		}
	}
	return true
}

// CountParams returns the number of scalar weights in params.
func CountParams(params []*Param) int {
	n := 0
	for _, p := range params {
		r, c := p.Value.Dims()
		n += r * c
	}
	return n
}
