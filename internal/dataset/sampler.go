package dataset

import (
	"context"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// RootsOptions configures a multi-root shard pass.
type RootsOptions struct {
	Roots      map[string][]string
	Seed       int64
	NumWorkers int
	PendingCap int
	Passes     int
}

func (o *RootsOptions) defaults() error {
	if len(o.Roots) == 0 {
		return errors.New("dataset: no roots provided")
	}
	shards := 0
	for _, s := range o.Roots {
		shards += len(s)
	}
	if shards == 0 {
		return errors.New("dataset: no shards discovered")
	}
	if o.NumWorkers <= 0 {
		o.NumWorkers = 1
	}
	if o.PendingCap <= 0 {
		o.PendingCap = defaultPendingCap
	}
	if o.Passes <= 0 {
		o.Passes = 1
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	return nil
}

// shardRef is one entry of a read plan.
type shardRef struct {
	root string
	path string
}

// openShard is a shard whose reader has been started.
type openShard struct {
	path    string
	records <-chan Record
	errs    <-chan error
}

// StreamRoots reads every shard of every root Passes times (default once).
// Shards are visited round-robin across roots in a seeded order. Up to
// NumWorkers shards are read ahead concurrently, but records are delivered in
// plan order, so the stream is deterministic for a given seed. Both channels
// close when the pass completes, the first shard error is reported, or ctx is
// cancelled.
func StreamRoots(parent context.Context, opts RootsOptions) (<-chan Record, <-chan error, error) {
	if err := opts.defaults(); err != nil {
		return nil, nil, err
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	var plan []shardRef
	for p := 0; p < opts.Passes; p++ {
		plan = append(plan, buildRoundRobinOrder(opts.Roots, rng)...)
	}

	ctx, cancel := context.WithCancel(parent)
	out := make(chan Record, 2*opts.NumWorkers)
	errCh := make(chan error, 1)
	// The buffer bounds how far the opener runs ahead of the consumer.
	ahead := make(chan openShard, opts.NumWorkers)

	go func() {
		defer close(ahead)
		for _, ref := range plan {
			records, errs := StreamShard(ctx, ref.path, opts.PendingCap)
			select {
			case <-ctx.Done():
				return
			case ahead <- openShard{path: ref.path, records: records, errs: errs}:
			}
		}
	}()

	go func() {
		defer cancel()
		defer close(out)
		defer close(errCh)
		for shard := range ahead {
			if !forward(ctx, shard.records, out) {
				return
			}
			if err := <-shard.errs; err != nil && !errors.Is(err, context.Canceled) {
				errCh <- errors.Wrapf(err, "shard %s", shard.path)
				return
			}
		}
	}()

	return out, errCh, nil
}

// forward copies records to out until the shard is exhausted. It returns
// false if ctx was cancelled first.
func forward(ctx context.Context, records <-chan Record, out chan<- Record) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case rec, ok := <-records:
			if !ok {
				return true
			}
			select {
			case <-ctx.Done():
				return false
			case out <- rec:
			}
		}
	}
}

// buildRoundRobinOrder shuffles each root's shards with rng (roots taken in
// sorted order) and interleaves them: the first shard of every root, then
// the second, and so on.
func buildRoundRobinOrder(roots map[string][]string, rng *rand.Rand) []shardRef {
	names := make([]string, 0, len(roots))
	for root := range roots {
		names = append(names, root)
	}
	sort.Strings(names)

	shuffled := make([][]string, len(names))
	longest := 0
	for i, root := range names {
		s := append([]string(nil), roots[root]...)
		if rng != nil {
			rng.Shuffle(len(s), func(a, b int) { s[a], s[b] = s[b], s[a] })
		}
		shuffled[i] = s
		if len(s) > longest {
			longest = len(s)
		}
	}

	var order []shardRef
	for depth := 0; depth < longest; depth++ {
		for i, root := range names {
			if depth < len(shuffled[i]) {
				order = append(order, shardRef{root: root, path: shuffled[i][depth]})
			}
		}
	}
	return order
}
