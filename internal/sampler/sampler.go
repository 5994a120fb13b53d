// Package sampler renders qualitative snapshots of a model during training:
// image grids of generated or reconstructed samples and loss curves.
package sampler

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"ganforge/internal/dataset"
	"ganforge/internal/model"
)

// RenderFunc produces n samples, one per row, from the current model state.
type RenderFunc func(n int) (*mat.Dense, error)

// Sampler persists a snapshot of the model at a training step.
type Sampler interface {
	Sample(step int, render RenderFunc) error
}

// GridSampler writes Rows x Cols samples as one PNG to
// <Dir>/<Dataset>/<Model>_<step>.png.
type GridSampler struct {
	Dir     string
	Dataset string
	Model   string
	Shape   model.Shape
	Norm    dataset.Normalization
	Rows    int
	Cols    int
	// Notify, if set, is called with the path of every written grid.
	Notify func(path string)
}

// Path returns the file a grid for step is written to.
func (g *GridSampler) Path(step int) string {
	return filepath.Join(g.Dir, g.Dataset, g.Model+"_"+strconv.Itoa(step)+".png")
}

func (g *GridSampler) Sample(step int, render RenderFunc) error {
	rows, cols := g.Rows, g.Cols
	if rows <= 0 {
		rows = 5
	}
	if cols <= 0 {
		cols = 5
	}
	samples, err := render(rows * cols)
	if err != nil {
		return errors.Wrap(err, "[Sampler] render")
	}
	img, err := Grid(samples, g.Shape, g.Norm, rows, cols)
	if err != nil {
		return err
	}
	path := g.Path(step)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "[Sampler] mkdir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "[Sampler] create")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrap(err, "[Sampler] encode")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "[Sampler] close")
	}
	if g.Notify != nil {
		g.Notify(path)
	}
	return nil
}

// Grid tiles the first rows*cols samples into a single image. Missing cells
// stay black.
func Grid(samples *mat.Dense, shape model.Shape, norm dataset.Normalization, rows, cols int) (image.Image, error) {
	n, width := samples.Dims()
	if width != shape.Size() {
		return nil, errors.Wrapf(model.ErrShapeMismatch, "[Sampler] sample width %d, shape %v", width, shape)
	}
	if shape.Channels != 1 && shape.Channels != 3 {
		return nil, errors.Errorf("[Sampler] unsupported channel count %d", shape.Channels)
	}
	img := image.NewRGBA(image.Rect(0, 0, cols*shape.Width, rows*shape.Height))
	for i := 0; i < rows*cols && i < n; i++ {
		ox := (i % cols) * shape.Width
		oy := (i / cols) * shape.Height
		row := samples.RawRowView(i)
		for y := 0; y < shape.Height; y++ {
			for x := 0; x < shape.Width; x++ {
				base := (y*shape.Width + x) * shape.Channels
				var c color.RGBA
				if shape.Channels == 1 {
					v := toByte(norm.ToUnit(row[base]))
					c = color.RGBA{R: v, G: v, B: v, A: 255}
				} else {
					c = color.RGBA{
						R: toByte(norm.ToUnit(row[base])),
						G: toByte(norm.ToUnit(row[base+1])),
						B: toByte(norm.ToUnit(row[base+2])),
						A: 255,
					}
				}
				img.SetRGBA(ox+x, oy+y, c)
			}
		}
	}
	return img, nil
}

func toByte(v float64) uint8 {
	return uint8(v*255 + 0.5)
}
