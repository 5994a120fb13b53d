package dataset

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"ganforge/internal/model"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeImageResamples(t *testing.T) {
	raw := solidPNG(t, 8, 8, color.RGBA{R: 255, A: 255})

	rgb, err := DecodeImage(raw, model.Shape{Height: 4, Width: 4, Channels: 3}, NormUnit)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if len(rgb) != 48 {
		t.Fatalf("expected 48 values, got %d", len(rgb))
	}
	if rgb[0] != 1 || rgb[1] != 0 || rgb[2] != 0 {
		t.Fatalf("expected pure red, got %v", rgb[:3])
	}

	gray, err := DecodeImage(raw, model.Shape{Height: 2, Width: 2, Channels: 1}, NormSymmetric)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	want := 2.0/3.0 - 1
	if diff := gray[0] - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("gray value %f, want %f", gray[0], want)
	}

	if _, err := DecodeImage([]byte("nope"), model.Shape{Height: 2, Width: 2, Channels: 1}, NormUnit); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoadShardsSkipsUndecodable(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	shard := filepath.Join(root, "shard-000000.tar")
	img := solidPNG(t, 4, 4, color.White)
	mustWrite(t, shard)
	writeFile(t, shard, buildShard([]tarEntry{
		{name: "0.png", data: img},
		{name: "0.cls", data: []byte("1")},
		{name: "1.png", data: []byte("broken")},
		{name: "1.cls", data: []byte("2")},
		{name: "2.png", data: img},
	}).Bytes())

	roots, err := DiscoverByRoot([]string{root})
	if err != nil {
		t.Fatalf("DiscoverByRoot: %v", err)
	}
	src, err := LoadShards(context.Background(), LoadOptions{
		RootsOptions: RootsOptions{Roots: roots},
		Shape:        model.Shape{Height: 2, Width: 2, Channels: 1},
		Norm:         NormUnit,
	})
	if err != nil {
		t.Fatalf("LoadShards: %v", err)
	}
	if src.Len() != 2 {
		t.Fatalf("expected 2 decoded samples, got %d", src.Len())
	}
	if src.Label(0) != 1 || src.Label(1) != -1 {
		t.Fatalf("unexpected labels %d %d", src.Label(0), src.Label(1))
	}
}
