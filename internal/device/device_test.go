package device

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestResolveCPU(t *testing.T) {
	for _, name := range []string{"", "auto", "CPU"} {
		d, err := Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", name, err)
		}
		if d.Kind != CPU || d.Fallback {
			t.Fatalf("Resolve(%q) = %+v", name, d)
		}
		if d.Threads <= 0 || d.Cores <= 0 {
			t.Fatalf("expected positive core counts, got %+v", d)
		}
	}
}

func TestResolveGPUFallsBack(t *testing.T) {
	d, err := Resolve("cuda")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Kind != CPU || !d.Fallback {
		t.Fatalf("expected cpu fallback, got %+v", d)
	}
	if !strings.HasPrefix(d.String(), "cpu (") {
		t.Fatalf("unexpected String %q", d.String())
	}
}

func TestResolveUnknown(t *testing.T) {
	if _, err := Resolve("tpu"); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestWorkers(t *testing.T) {
	d := Device{Kind: CPU, Cores: 6, Threads: 12}
	if got := d.Workers(3); got != 3 {
		t.Fatalf("explicit workers ignored: %d", got)
	}
	if got := d.Workers(0); got != 6 {
		t.Fatalf("expected one worker per core, got %d", got)
	}
	if got := (Device{}).Workers(0); got != 1 {
		t.Fatalf("expected at least one worker, got %d", got)
	}
	probed, err := Resolve("cpu")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if probed.Workers(0) < 1 {
		t.Fatalf("probed device gives %d workers", probed.Workers(0))
	}
}
