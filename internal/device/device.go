// Package device resolves the compute device flag once, at construction.
package device

import (
	"fmt"
	"log"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
)

// ErrUnknownDevice is returned for a device name Resolve does not recognise.
var ErrUnknownDevice = errors.New("unknown device")

// Kind is the class of compute device.
type Kind string

const (
	CPU Kind = "cpu"
	GPU Kind = "gpu"
)

// Device describes where the numeric work runs.
type Device struct {
	Kind      Kind
	Requested string
	Brand     string
	Cores     int
	Threads   int
	AVX2      bool
	AVX512    bool
	// Fallback is set when an accelerator was requested but the CPU is used.
	Fallback bool
}

// Resolve maps a device flag (cpu, gpu, cuda, auto or empty) to a Device.
// This build has no accelerator backend, so gpu and auto resolve to the CPU.
func Resolve(name string) (Device, error) {
	req := strings.ToLower(strings.TrimSpace(name))
	d := probeCPU()
	d.Requested = req
	switch req {
	case "", "auto", "cpu":
	case "gpu", "cuda":
		d.Fallback = true
		log.Printf("device: %s requested but no accelerator backend is available, using cpu", req)
	default:
		return Device{}, errors.Wrapf(ErrUnknownDevice, "%q", name)
	}
	return d, nil
}

func probeCPU() Device {
	d := Device{
		Kind:    CPU,
		Brand:   cpuid.CPU.BrandName,
		Cores:   cpuid.CPU.PhysicalCores,
		Threads: cpuid.CPU.LogicalCores,
		AVX2:    cpuid.CPU.Supports(cpuid.AVX2),
		AVX512:  cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
	}
	if d.Brand == "" {
		d.Brand = runtime.GOARCH
	}
	if d.Threads <= 0 {
		d.Threads = runtime.NumCPU()
	}
	if d.Cores <= 0 {
		d.Cores = d.Threads
	}
	return d
}

// Workers returns requested when it is positive, otherwise one worker per
// physical core.
func (d Device) Workers(requested int) int {
	if requested > 0 {
		return requested
	}
	if d.Cores > 0 {
		return d.Cores
	}
	return 1
}

func (d Device) String() string {
	s := fmt.Sprintf("%s (%s, %d cores/%d threads", d.Kind, d.Brand, d.Cores, d.Threads)
	switch {
	case d.AVX512:
		s += ", avx512"
	case d.AVX2:
		s += ", avx2"
	}
	return s + ")"
}
