package dataset

import (
	"github.com/pkg/errors"

	"ganforge/internal/model"
)

// ErrEmpty is returned when a batch is requested from a source with no samples.
var ErrEmpty = errors.New("dataset: empty source")

// Source is a finite, indexable collection of flattened samples.
type Source interface {
	Len() int
	Shape() model.Shape
	Row(i int) []float64
	Label(i int) int
}

// Normalization maps raw 8-bit intensities into the range the networks see.
type Normalization string

const (
	// NormUnit scales to [0, 1].
	NormUnit Normalization = "unit"
	// NormSymmetric scales to [-1, 1].
	NormSymmetric Normalization = "symmetric"
)

// Valid reports whether n is a known normalization.
func (n Normalization) Valid() bool {
	return n == NormUnit || n == NormSymmetric
}

// FromUnit maps a [0,1] intensity into the normalized range.
func (n Normalization) FromUnit(v float64) float64 {
	if n == NormSymmetric {
		return v*2 - 1
	}
	return v
}

// FromByte maps an 8-bit intensity into the normalized range.
func (n Normalization) FromByte(b uint8) float64 {
	if n == NormSymmetric {
		return (float64(b) - 127.5) / 127.5
	}
	return float64(b) / 255
}

// ToUnit maps a normalized value back to [0, 1], clamping overshoot.
func (n Normalization) ToUnit(v float64) float64 {
	if n == NormSymmetric {
		v = 0.5*v + 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Memory is a Source held entirely in memory.
type Memory struct {
	shape  model.Shape
	rows   [][]float64
	labels []int
}

// NewMemory wraps rows of the given shape. labels may be nil.
func NewMemory(shape model.Shape, rows [][]float64, labels []int) (*Memory, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if labels != nil && len(labels) != len(rows) {
		return nil, errors.Errorf("dataset: %d labels for %d rows", len(labels), len(rows))
	}
	size := shape.Size()
	for i, r := range rows {
		if len(r) != size {
			return nil, errors.Wrapf(model.ErrShapeMismatch, "dataset: row %d has %d values, want %d", i, len(r), size)
		}
	}
	return &Memory{shape: shape, rows: rows, labels: labels}, nil
}

// Constant returns n identical samples filled with value v.
func Constant(shape model.Shape, n int, v float64) (*Memory, error) {
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, shape.Size())
		for j := range row {
			row[j] = v
		}
		rows[i] = row
	}
	return NewMemory(shape, rows, nil)
}

func (m *Memory) Len() int            { return len(m.rows) }
func (m *Memory) Shape() model.Shape  { return m.shape }
func (m *Memory) Row(i int) []float64 { return m.rows[i] }

func (m *Memory) Label(i int) int {
	if m.labels == nil {
		return -1
	}
	return m.labels[i]
}

// Limit truncates the source to at most n samples; n <= 0 keeps everything.
func (m *Memory) Limit(n int) *Memory {
	if n <= 0 || n >= len(m.rows) {
		return m
	}
	out := &Memory{shape: m.shape, rows: m.rows[:n]}
	if m.labels != nil {
		out.labels = m.labels[:n]
	}
	return out
}
