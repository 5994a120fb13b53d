package dataset

import (
	"context"
	"math/rand"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestBuildRoundRobinOrderDeterministic(t *testing.T) {
	roots := map[string][]string{
		"/rootA": {"/rootA/shard-000000.tar", "/rootA/shard-000002.tar"},
		"/rootB": {"/rootB/shard-000001.tar"},
	}
	order1 := buildRoundRobinOrder(roots, rand.New(rand.NewSource(7)))
	order2 := buildRoundRobinOrder(roots, rand.New(rand.NewSource(7)))

	if !reflect.DeepEqual(order1, order2) {
		t.Fatalf("round robin order not deterministic: %v vs %v", order1, order2)
	}
	if len(order1) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(order1))
	}
	if order1[0].root == order1[1].root {
		t.Fatalf("expected alternating roots, got %v", order1)
	}
}

func TestStreamRootsSinglePassDeterministic(t *testing.T) {
	temp := t.TempDir()
	rootA := filepath.Join(temp, "rootA")
	rootB := filepath.Join(temp, "rootB")
	mustShard(t, filepath.Join(rootA, "shard-000000.tar"), "a0", "a1")
	mustShard(t, filepath.Join(rootA, "shard-000002.tar"), "a2")
	mustShard(t, filepath.Join(rootB, "shard-000001.tar"), "b0")

	roots, err := DiscoverByRoot([]string{rootA, rootB})
	if err != nil {
		t.Fatalf("DiscoverByRoot: %v", err)
	}
	opts := RootsOptions{Roots: roots, Seed: 99, NumWorkers: 3, PendingCap: 8}

	first := collectKeys(t, opts)
	second := collectKeys(t, opts)
	if len(first) != 4 {
		t.Fatalf("expected 4 records in one pass, got %v", first)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("stream not deterministic: %v vs %v", first, second)
	}

	opts.Passes = 2
	if twice := collectKeys(t, opts); len(twice) != 8 {
		t.Fatalf("expected 8 records over two passes, got %d", len(twice))
	}
}

func TestStreamRootsCancel(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	mustShard(t, filepath.Join(root, "shard-000000.tar"), "x0", "x1", "x2")
	roots, err := DiscoverByRoot([]string{root})
	if err != nil {
		t.Fatalf("DiscoverByRoot: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	records, errCh, err := StreamRoots(ctx, RootsOptions{Roots: roots, Passes: 1000})
	if err != nil {
		t.Fatalf("StreamRoots: %v", err)
	}
	<-records
	cancel()

	done := make(chan struct{})
	go func() {
		for range records {
		}
		for range errCh {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("stream did not stop after cancel")
	}
}

func TestStreamRootsRejectsEmpty(t *testing.T) {
	if _, _, err := StreamRoots(context.Background(), RootsOptions{}); err == nil {
		t.Fatalf("expected error without roots")
	}
}

func collectKeys(t *testing.T, opts RootsOptions) []string {
	t.Helper()
	records, errCh, err := StreamRoots(context.Background(), opts)
	if err != nil {
		t.Fatalf("StreamRoots: %v", err)
	}
	var keys []string
	for rec := range records {
		keys = append(keys, rec.Key)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("stream error: %v", err)
	}
	return keys
}

func mustShard(t *testing.T, path string, keys ...string) {
	t.Helper()
	entries := make([]tarEntry, 0, 2*len(keys))
	for i, key := range keys {
		entries = append(entries,
			tarEntry{name: key + ".png", data: []byte("img-" + key)},
			tarEntry{name: key + ".cls", data: []byte{byte('0' + i%10)}},
		)
	}
	mustWrite(t, path)
	writeFile(t, path, buildShard(entries).Bytes())
}
