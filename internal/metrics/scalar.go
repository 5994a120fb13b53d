package metrics

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ScalarLogger receives (name, value, step) triples for external dashboards.
type ScalarLogger interface {
	Log(name string, value float64, step int) error
}

// MultiLogger fans a scalar out to every logger and returns the first error.
// Every logger is called even if an earlier one fails.
type MultiLogger []ScalarLogger

func (m MultiLogger) Log(name string, value float64, step int) error {
	var first error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.Log(name, value, step); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LogSink writes scalars as tab separated lines.
type LogSink struct {
	W io.Writer
}

func (s LogSink) Log(name string, value float64, step int) error {
	if _, err := fmt.Fprintf(s.W, "%d\t%s\t%g\n", step, name, value); err != nil {
		return errors.Wrap(err, "scalar sink")
	}
	return nil
}
