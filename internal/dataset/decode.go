package dataset

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"

	"github.com/pkg/errors"

	"ganforge/internal/model"
)

// DecodeImage decodes a PNG or JPEG and resamples it (nearest neighbour) to
// shape, returning a row in height, width, channel order. Single-channel
// shapes use the mean of the RGB planes.
func DecodeImage(raw []byte, shape model.Shape, norm Normalization) ([]float64, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, errors.New("empty image")
	}
	if shape.Channels != 1 && shape.Channels != 3 {
		return nil, errors.Errorf("unsupported channel count %d", shape.Channels)
	}
	row := make([]float64, shape.Size())
	for y := 0; y < shape.Height; y++ {
		py := bounds.Min.Y + y*height/shape.Height
		for x := 0; x < shape.Width; x++ {
			px := bounds.Min.X + x*width/shape.Width
			r, g, b, _ := img.At(px, py).RGBA()
			base := (y*shape.Width + x) * shape.Channels
			if shape.Channels == 1 {
				row[base] = norm.FromUnit((float64(r) + float64(g) + float64(b)) / (3 * 65535.0))
				continue
			}
			row[base] = norm.FromUnit(float64(r) / 65535.0)
			row[base+1] = norm.FromUnit(float64(g) / 65535.0)
			row[base+2] = norm.FromUnit(float64(b) / 65535.0)
		}
	}
	return row, nil
}

// LoadOptions configures LoadShards.
type LoadOptions struct {
	RootsOptions
	Shape model.Shape
	Norm  Normalization
	Limit int
}

// LoadShards runs one StreamRoots pass and decodes every record into memory.
// Records whose image cannot be decoded are skipped and counted.
func LoadShards(ctx context.Context, opts LoadOptions) (*Memory, error) {
	if err := opts.Shape.Validate(); err != nil {
		return nil, err
	}
	records, errCh, err := StreamRoots(ctx, opts.RootsOptions)
	if err != nil {
		return nil, err
	}
	var rows [][]float64
	var labels []int
	skipped := 0
	for rec := range records {
		if opts.Limit > 0 && len(rows) >= opts.Limit {
			continue
		}
		row, err := DecodeImage(rec.Image, opts.Shape, opts.Norm)
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, row)
		labels = append(labels, rec.Label)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Printf("dataset: skipped %d undecodable images", skipped)
	}
	if len(rows) == 0 {
		return nil, errors.New("dataset: no decodable images in shards")
	}
	return NewMemory(opts.Shape, rows, labels)
}
