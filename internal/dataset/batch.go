package dataset

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"ganforge/internal/model"
)

// Iterator walks a Source in fixed-size batches. An epoch yields
// floor(Len/batchSize) batches, optionally capped; the trailing partial batch
// is never returned.
type Iterator struct {
	src       Source
	batchSize int
	batches   int
	order     []int
	served    int
	rng       *rand.Rand
}

// NewIterator creates an iterator. maxBatches <= 0 means no cap. A nil rng
// keeps dataset order, otherwise the order is reshuffled at every Reset.
func NewIterator(src Source, batchSize, maxBatches int, rng *rand.Rand) *Iterator {
	it := &Iterator{src: src, batchSize: batchSize, rng: rng}
	if batchSize > 0 {
		it.batches = src.Len() / batchSize
	}
	if maxBatches > 0 && it.batches > maxBatches {
		it.batches = maxBatches
	}
	it.order = make([]int, src.Len())
	it.Reset()
	return it
}

// Batches is the declared number of batches per epoch.
func (it *Iterator) Batches() int { return it.batches }

// Reset starts a new epoch.
func (it *Iterator) Reset() {
	for i := range it.order {
		it.order[i] = i
	}
	if it.rng != nil {
		it.rng.Shuffle(len(it.order), func(i, j int) {
			it.order[i], it.order[j] = it.order[j], it.order[i]
		})
	}
	it.served = 0
}

// Next returns the next full batch, or false once the epoch is over or the
// source cannot fill another batch.
func (it *Iterator) Next() (model.Batch, bool) {
	if it.served >= it.batches {
		return model.Batch{}, false
	}
	start := it.served * it.batchSize
	end := start + it.batchSize
	if end > len(it.order) || end > it.src.Len() {
		return model.Batch{}, false
	}
	it.served++
	return Gather(it.src, it.order[start:end]), true
}

// RandomBatch draws n samples uniformly at random with replacement.
func RandomBatch(src Source, n int, rng *rand.Rand) (model.Batch, error) {
	if src.Len() == 0 {
		return model.Batch{}, ErrEmpty
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(src.Len())
	}
	return Gather(src, idx), nil
}

// Gather copies the indexed samples into a batch.
func Gather(src Source, idx []int) model.Batch {
	size := src.Shape().Size()
	data := make([]float64, 0, len(idx)*size)
	labels := make([]int, len(idx))
	for i, ix := range idx {
		data = append(data, src.Row(ix)...)
		labels[i] = src.Label(ix)
	}
	return model.Batch{Samples: mat.NewDense(len(idx), size, data), Labels: labels}
}
