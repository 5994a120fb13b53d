package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// epsilon keeps log() away from zero in BCE.
const epsilon = 1e-7

// Labels returns an n×1 column with every element set to v.
func Labels(n int, v float64) *mat.Dense {
	data := make([]float64, n)
	for i := range data {
		data[i] = v
	}
	return mat.NewDense(n, 1, data)
}

// BCE is the mean binary cross-entropy between predicted probabilities and
// targets, along with its gradient w.r.t. pred.
func BCE(pred, target mat.Matrix) (float64, *mat.Dense) {
	rows, cols := pred.Dims()
	n := float64(rows * cols)
	grad := mat.NewDense(rows, cols, nil)
	loss := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p := math.Min(math.Max(pred.At(i, j), epsilon), 1-epsilon)
			t := target.At(i, j)
			loss -= t*math.Log(p) + (1-t)*math.Log(1-p)
			grad.Set(i, j, (p-t)/(p*(1-p))/n)
		}
	}
	return loss / n, grad
}

// MSE is the mean squared error and its gradient w.r.t. pred.
func MSE(pred, target mat.Matrix) (float64, *mat.Dense) {
	rows, cols := pred.Dims()
	n := float64(rows * cols)
	grad := mat.NewDense(rows, cols, nil)
	loss := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := pred.At(i, j) - target.At(i, j)
			loss += d * d
			grad.Set(i, j, 2*d/n)
		}
	}
	return loss / n, grad
}

// BinaryAccuracy is the fraction of predictions on the same side of 0.5 as
// their target.
func BinaryAccuracy(pred, target mat.Matrix) float64 {
	rows, cols := pred.Dims()
	if rows*cols == 0 {
		return 0
	}
	hits := 0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if (pred.At(i, j) > 0.5) == (target.At(i, j) > 0.5) {
				hits++
			}
		}
	}
	return float64(hits) / float64(rows*cols)
}

// Mean returns the average of all elements of m.
func Mean(m mat.Matrix) float64 {
	rows, cols := m.Dims()
	return mat.Sum(m) / float64(rows*cols)
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
