package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"ganforge/internal/model"
)

const (
	idxImageMagic = 0x00000803
	idxLabelMagic = 0x00000801

	maxIDXSide = 4096
)

// ErrShortRead is returned when an IDX file ends before its declared size.
var ErrShortRead = errors.New("idx: unexpected end of data")

// LoadMNIST reads an IDX image file (and optionally its label file) into
// memory. Files ending in .gz are decompressed. limit <= 0 loads everything.
func LoadMNIST(imagesPath, labelsPath string, norm Normalization, limit int) (*Memory, error) {
	shape, rows, err := readIDXImages(imagesPath, norm, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "mnist images %s", imagesPath)
	}
	var labels []int
	if labelsPath != "" {
		labels, err = readIDXLabels(labelsPath, len(rows))
		if err != nil {
			return nil, errors.Wrapf(err, "mnist labels %s", labelsPath)
		}
	}
	return NewMemory(shape, rows, labels)
}

func openIDX(path string) (io.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return bufio.NewReader(f), f.Close, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return bufio.NewReader(gz), func() error {
		gz.Close()
		return f.Close()
	}, nil
}

// ReadIDXImages decodes an IDX3 image stream.
func ReadIDXImages(r io.Reader, norm Normalization, limit int) (model.Shape, [][]float64, error) {
	var hdr struct {
		Magic, Count, Rows, Cols uint32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return model.Shape{}, nil, errors.Wrap(err, "read header")
	}
	if hdr.Magic != idxImageMagic {
		return model.Shape{}, nil, errors.Errorf("bad image magic %#x", hdr.Magic)
	}
	if hdr.Rows > maxIDXSide || hdr.Cols > maxIDXSide {
		return model.Shape{}, nil, errors.Errorf("image size %dx%d exceeds %d", hdr.Rows, hdr.Cols, maxIDXSide)
	}
	shape := model.Shape{Height: int(hdr.Rows), Width: int(hdr.Cols), Channels: 1}
	if err := shape.Validate(); err != nil {
		return model.Shape{}, nil, err
	}
	n := int(hdr.Count)
	if limit > 0 && limit < n {
		n = limit
	}
	// The header count is not trusted for allocation; rows grow as data arrives.
	buf := make([]byte, shape.Size())
	var rows [][]float64
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return model.Shape{}, nil, errors.Wrapf(ErrShortRead, "image %d: %v", i, err)
		}
		row := make([]float64, len(buf))
		for j, b := range buf {
			row[j] = norm.FromByte(b)
		}
		rows = append(rows, row)
	}
	return shape, rows, nil
}

// ReadIDXLabels decodes an IDX1 label stream, keeping the first n labels.
func ReadIDXLabels(r io.Reader, n int) ([]int, error) {
	var hdr struct {
		Magic, Count uint32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if hdr.Magic != idxLabelMagic {
		return nil, errors.Errorf("bad label magic %#x", hdr.Magic)
	}
	if int64(hdr.Count) < int64(n) {
		return nil, errors.Errorf("%d labels for %d images", hdr.Count, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrapf(ErrShortRead, "labels: %v", err)
	}
	labels := make([]int, n)
	for i, b := range buf {
		labels[i] = int(b)
	}
	return labels, nil
}

func readIDXImages(path string, norm Normalization, limit int) (model.Shape, [][]float64, error) {
	r, closeFn, err := openIDX(path)
	if err != nil {
		return model.Shape{}, nil, err
	}
	defer closeFn()
	return ReadIDXImages(r, norm, limit)
}

func readIDXLabels(path string, n int) ([]int, error) {
	r, closeFn, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return ReadIDXLabels(r, n)
}
