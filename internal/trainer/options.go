package trainer

import (
	"io"
	"os"

	"ganforge/internal/device"
	"ganforge/internal/metrics"
	"ganforge/internal/sampler"
)

type options struct {
	sampler  sampler.Sampler
	logger   metrics.ScalarLogger
	progress io.Writer
	device   *device.Device
	history  *metrics.History
}

// Option customises a trainer.
type Option func(*options)

// WithSampler sets the collaborator invoked every save interval.
func WithSampler(s sampler.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithScalarLogger sets the sink for per-iteration scalars.
func WithScalarLogger(l metrics.ScalarLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithProgress redirects progress lines (default os.Stdout).
func WithProgress(w io.Writer) Option {
	return func(o *options) { o.progress = w }
}

// WithDevice uses an already resolved device instead of Config.Device.
func WithDevice(d device.Device) Option {
	return func(o *options) { o.device = &d }
}

// WithHistory records into h instead of a fresh history, so readers such as
// the dashboard can hold it before the run starts.
func WithHistory(h *metrics.History) Option {
	return func(o *options) { o.history = h }
}

func buildOptions(opts []Option) options {
	o := options{progress: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.history == nil {
		o.history = metrics.NewHistory()
	}
	return o
}
