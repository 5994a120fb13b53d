package model

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"ganforge/internal/nn"
)

// ErrShapeMismatch is returned when a batch does not match a network's input
// contract. It is the same sentinel the nn package reports.
var ErrShapeMismatch = nn.ErrShapeMismatch

// Shape is the declared height, width and channel count of one data sample.
type Shape struct {
	Height   int
	Width    int
	Channels int
}

// Size is the flattened length of a sample.
func (s Shape) Size() int {
	return s.Height * s.Width * s.Channels
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Channels)
}

// Validate rejects non-positive dimensions.
func (s Shape) Validate() error {
	if s.Height <= 0 || s.Width <= 0 || s.Channels <= 0 {
		return errors.Errorf("invalid sample shape %s", s)
	}
	return nil
}

// Batch represents a minibatch of flattened samples, one per row, and their
// dataset labels (-1 when unlabeled).
type Batch struct {
	Samples *mat.Dense
	Labels  []int
}

// Len returns the number of samples in the batch.
func (b Batch) Len() int {
	if b.Samples == nil {
		return 0
	}
	rows, _ := b.Samples.Dims()
	return rows
}

// Model is any of the trainable networks used by the adversarial trainer.
type Model interface {
	Params() []*nn.Param
	ZeroGrad()
	String() string
}
