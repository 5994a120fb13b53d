package dataset

import (
	"math/rand"

	"ganforge/internal/model"
)

// Synthetic returns n images of a bright axis-aligned square on a dark
// background, placed and sized at random. It needs no files and gives the
// networks a simple distribution to learn.
func Synthetic(shape model.Shape, n int, norm Normalization, rng *rand.Rand) (*Memory, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	rows := make([][]float64, n)
	labels := make([]int, n)
	minSide := shape.Height
	if shape.Width < minSide {
		minSide = shape.Width
	}
	for i := range rows {
		row := make([]float64, shape.Size())
		for j := range row {
			row[j] = norm.FromUnit(0)
		}
		side := 1 + rng.Intn((minSide+1)/2)
		top := rng.Intn(shape.Height - side + 1)
		left := rng.Intn(shape.Width - side + 1)
		for y := top; y < top+side; y++ {
			for x := left; x < left+side; x++ {
				for c := 0; c < shape.Channels; c++ {
					row[(y*shape.Width+x)*shape.Channels+c] = norm.FromUnit(1)
				}
			}
		}
		rows[i] = row
		labels[i] = side
	}
	return NewMemory(shape, rows, labels)
}
