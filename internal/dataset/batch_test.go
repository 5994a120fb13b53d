package dataset

import (
	"math/rand"
	"testing"

	"ganforge/internal/model"
)

func indexedSource(t *testing.T, n int) *Memory {
	t.Helper()
	shape := model.Shape{Height: 1, Width: 2, Channels: 1}
	rows := make([][]float64, n)
	labels := make([]int, n)
	for i := range rows {
		rows[i] = []float64{float64(i), float64(-i)}
		labels[i] = i
	}
	src, err := NewMemory(shape, rows, labels)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	return src
}

func TestIteratorDropsPartialBatch(t *testing.T) {
	it := NewIterator(indexedSource(t, 2), 4, 0, nil)
	if it.Batches() != 0 {
		t.Fatalf("expected 0 batches, got %d", it.Batches())
	}
	if _, ok := it.Next(); ok {
		t.Fatalf("expected no batch from an undersized source")
	}

	it = NewIterator(indexedSource(t, 5), 2, 0, nil)
	count := 0
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		if b.Len() != 2 {
			t.Fatalf("batch %d has %d rows", count, b.Len())
		}
		if b.Labels[0] != 2*count {
			t.Fatalf("sequential order broken: batch %d starts at %d", count, b.Labels[0])
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 batches, got %d", count)
	}
}

func TestIteratorCapAndReset(t *testing.T) {
	it := NewIterator(indexedSource(t, 10), 2, 3, rand.New(rand.NewSource(1)))
	if it.Batches() != 3 {
		t.Fatalf("expected cap of 3 batches, got %d", it.Batches())
	}
	seen := 0
	for _, ok := it.Next(); ok; _, ok = it.Next() {
		seen++
	}
	if seen != 3 {
		t.Fatalf("expected 3 batches, got %d", seen)
	}
	it.Reset()
	if _, ok := it.Next(); !ok {
		t.Fatalf("expected a batch after Reset")
	}
}

func TestRandomBatch(t *testing.T) {
	src := indexedSource(t, 3)
	b, err := RandomBatch(src, 8, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("RandomBatch: %v", err)
	}
	if r, c := b.Samples.Dims(); r != 8 || c != 2 {
		t.Fatalf("unexpected dims %dx%d", r, c)
	}
	for i, label := range b.Labels {
		if b.Samples.At(i, 0) != float64(label) {
			t.Fatalf("row %d does not match label %d", i, label)
		}
	}
}

func TestRandomBatchEmptySource(t *testing.T) {
	src := indexedSource(t, 0)
	if _, err := RandomBatch(src, 4, rand.New(rand.NewSource(1))); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestMemoryValidation(t *testing.T) {
	shape := model.Shape{Height: 2, Width: 2, Channels: 1}
	if _, err := NewMemory(shape, [][]float64{{1, 2, 3}}, nil); err == nil {
		t.Fatalf("expected error for short row")
	}
	if _, err := NewMemory(shape, [][]float64{{1, 2, 3, 4}}, []int{1, 2}); err == nil {
		t.Fatalf("expected error for label count mismatch")
	}
	src, err := Constant(shape, 4, 0.5)
	if err != nil {
		t.Fatalf("Constant: %v", err)
	}
	if src.Limit(2).Len() != 2 || src.Label(0) != -1 {
		t.Fatalf("unexpected Limit/Label behaviour")
	}
}

func TestNormalizationRoundTrip(t *testing.T) {
	for _, norm := range []Normalization{NormUnit, NormSymmetric} {
		for _, b := range []uint8{0, 128, 255} {
			got := norm.ToUnit(norm.FromByte(b))
			want := float64(b) / 255
			if diff := got - want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("%s: byte %d maps back to %f, want %f", norm, b, got, want)
			}
		}
	}
	if NormSymmetric.ToUnit(3) != 1 || NormUnit.ToUnit(-1) != 0 {
		t.Fatalf("ToUnit should clamp")
	}
}

func TestSynthetic(t *testing.T) {
	shape := model.Shape{Height: 6, Width: 5, Channels: 3}
	src, err := Synthetic(shape, 10, NormSymmetric, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("Synthetic: %v", err)
	}
	if src.Len() != 10 {
		t.Fatalf("expected 10 samples, got %d", src.Len())
	}
	for i := 0; i < src.Len(); i++ {
		bright := 0
		for _, v := range src.Row(i) {
			switch v {
			case 1:
				bright++
			case -1:
			default:
				t.Fatalf("unexpected value %f", v)
			}
		}
		side := src.Label(i)
		if bright != side*side*shape.Channels {
			t.Fatalf("sample %d: %d bright values for side %d", i, bright, side)
		}
	}
}
