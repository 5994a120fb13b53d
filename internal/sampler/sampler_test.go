package sampler

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"ganforge/internal/dataset"
	"ganforge/internal/metrics"
	"ganforge/internal/model"
)

func TestGridSamplerWritesPNG(t *testing.T) {
	dir := t.TempDir()
	shape := model.Shape{Height: 2, Width: 3, Channels: 1}
	var notified string
	var requested int
	g := &GridSampler{
		Dir: dir, Dataset: "mnist", Model: "gan", Shape: shape,
		Norm: dataset.NormSymmetric, Rows: 2, Cols: 2,
		Notify: func(path string) { notified = path },
	}
	err := g.Sample(200, func(n int) (*mat.Dense, error) {
		requested = n
		m := mat.NewDense(n, shape.Size(), nil)
		m.Set(0, 0, 1)
		m.Set(1, 0, -1)
		return m, nil
	})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if requested != 4 {
		t.Fatalf("expected 4 samples requested, got %d", requested)
	}
	want := filepath.Join(dir, "mnist", "gan_200.png")
	if notified != want {
		t.Fatalf("notified %q, want %q", notified, want)
	}
	f, err := os.Open(want)
	if err != nil {
		t.Fatalf("open grid: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode grid: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 6 || b.Dy() != 4 {
		t.Fatalf("unexpected grid size %v", b)
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r != 0xffff {
		t.Fatalf("expected white top-left pixel, got %d", r)
	}
	if r, _, _, _ := img.At(3, 0).RGBA(); r != 0 {
		t.Fatalf("expected black pixel in second tile, got %d", r)
	}
	if r, _, _, _ := img.At(1, 0).RGBA(); math.Abs(float64(r)-0x8080) > 0x101 {
		t.Fatalf("expected mid-gray for zero, got %d", r)
	}
}

func TestGridSamplerErrors(t *testing.T) {
	shape := model.Shape{Height: 2, Width: 2, Channels: 1}
	g := &GridSampler{Dir: t.TempDir(), Dataset: "d", Model: "m", Shape: shape, Norm: dataset.NormUnit}
	if err := g.Sample(1, func(int) (*mat.Dense, error) { return nil, errors.New("render failed") }); err == nil {
		t.Fatalf("expected render error")
	}
	err := g.Sample(1, func(n int) (*mat.Dense, error) { return mat.NewDense(n, 3, nil), nil })
	if !errors.Is(err, model.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestPlotHistory(t *testing.T) {
	h := metrics.NewHistory()
	for i := 0; i < 10; i++ {
		h.Append(metrics.DLoss, 1/float64(i+1))
		h.Append(metrics.GLoss, float64(i)/10)
	}
	path := filepath.Join(t.TempDir(), "loss.png")
	if err := PlotHistory(h, path); err != nil {
		t.Fatalf("PlotHistory: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("plot not written: %v", err)
	}
	if err := PlotHistory(metrics.NewHistory(), path); err == nil {
		t.Fatalf("expected error for empty history")
	}
}
