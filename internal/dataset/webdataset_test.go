package dataset

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
)

func TestStreamShardPairsEntries(t *testing.T) {
	buf := buildShard([]tarEntry{
		{name: "000001.jpg", data: []byte("jpeg")},
		{name: "000001.cls", data: []byte("3")},
		{name: "000002.cls", data: []byte("7")},
		{name: "000002.png", data: []byte("png")},
	})
	records := streamAll(t, writeShard(t, buf))
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Key != "000001" || records[0].Label != 3 {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[1].Key != "000002" || records[1].Label != 7 {
		t.Fatalf("unexpected second record %+v", records[1])
	}
}

func TestStreamShardFlushesUnlabeledImages(t *testing.T) {
	buf := buildShard([]tarEntry{
		{name: "a.png", data: []byte("a")},
		{name: "b.png", data: []byte("b")},
		{name: "b.cls", data: []byte("1")},
		{name: "c.jpeg", data: []byte("c")},
	})
	records := streamAll(t, writeShard(t, buf))
	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Key+":"+strconv.Itoa(r.Label))
	}
	sort.Strings(keys)
	want := []string{"a:-1", "b:1", "c:-1"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, keys)
		}
	}
}

func TestStreamShardPendingOverflow(t *testing.T) {
	buf := buildShard([]tarEntry{
		{name: "a.png", data: []byte("a")},
		{name: "b.png", data: []byte("b")},
		{name: "c.png", data: []byte("c")},
	})
	recs, errCh := StreamShard(context.Background(), writeShard(t, buf), 2)
	for range recs {
	}
	if err := <-errCh; err != ErrPendingOverflow {
		t.Fatalf("expected ErrPendingOverflow, got %v", err)
	}
}

func streamAll(t *testing.T, shard string) []Record {
	t.Helper()
	recs, errCh := StreamShard(context.Background(), shard, 4)
	var out []Record
	for r := range recs {
		out = append(out, r)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("StreamShard returned error: %v", err)
	}
	return out
}

func writeShard(t *testing.T, buf *bytes.Buffer) string {
	t.Helper()
	shard := filepath.Join(t.TempDir(), "shard-000000.tar")
	if err := os.WriteFile(shard, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write shard: %v", err)
	}
	return shard
}

type tarEntry struct {
	name string
	data []byte
}

func buildShard(entries []tarEntry) *bytes.Buffer {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, e := range entries {
		addTarEntry(tw, e.name, e.data)
	}
	tw.Close()
	return buf
}

func addTarEntry(tw *tar.Writer, name string, data []byte) {
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644}
	if err := tw.WriteHeader(hdr); err != nil {
		panic(err)
	}
	if _, err := tw.Write(data); err != nil {
		panic(err)
	}
}
