// Package checkpoint persists network parameters (gob) and training history
// (JSON) so a run can be inspected or resumed.
package checkpoint

import (
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"ganforge/internal/metrics"
	"ganforge/internal/nn"
)

// paramData is the on-disk form of one parameter matrix.
type paramData struct {
	Name string
	Rows int
	Cols int
	Data []float64
}

// SaveParams writes the values of params to path.
func SaveParams(path string, params []*nn.Param) error {
	data := make([]paramData, len(params))
	for i, p := range params {
		r, c := p.Value.Dims()
		data[i] = paramData{Name: p.Name, Rows: r, Cols: c, Data: append([]float64(nil), p.Value.RawMatrix().Data...)}
	}
	f, err := create(path)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(data); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	return f.Close()
}

// LoadParams reads path into params. Names and shapes must match exactly.
func LoadParams(path string, params []*nn.Param) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open checkpoint")
	}
	defer f.Close()
	var data []paramData
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	if len(data) != len(params) {
		return errors.Errorf("checkpoint %s holds %d params, want %d", path, len(data), len(params))
	}
	for i, p := range params {
		d := data[i]
		r, c := p.Value.Dims()
		if d.Name != p.Name || d.Rows != r || d.Cols != c || len(d.Data) != r*c {
			return errors.Wrapf(nn.ErrShapeMismatch, "checkpoint param %s (%dx%d) does not match %s (%dx%d)", d.Name, d.Rows, d.Cols, p.Name, r, c)
		}
	}
	for i, p := range params {
		copy(p.Value.RawMatrix().Data, data[i].Data)
	}
	return nil
}

// SaveHistory writes h as indented JSON.
func SaveHistory(path string, h *metrics.History) error {
	raw, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal history")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "mkdir")
	}
	return errors.Wrap(os.WriteFile(path, raw, 0o644), "write history")
}

// LoadHistory reads a history written by SaveHistory.
func LoadHistory(path string) (*metrics.History, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read history")
	}
	h := metrics.NewHistory()
	if err := json.Unmarshal(raw, h); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return h, nil
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "mkdir")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create checkpoint")
	}
	return f, nil
}
