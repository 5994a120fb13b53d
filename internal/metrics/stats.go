package metrics

import "time"

// Window accumulates timing stats across multiple training iterations.
type Window struct {
	samples int
	data    time.Duration
	compute time.Duration
	steps   int
	dLoss   float64
	gLoss   float64
}

// Record adds a new measurement to the window.
func (w *Window) Record(batchSize int, dataTime, computeTime time.Duration, dLoss, gLoss float64) {
	w.samples += batchSize
	w.data += dataTime
	w.compute += computeTime
	w.steps++
	w.dLoss = dLoss
	w.gLoss = gLoss
}

// Steps is the number of iterations recorded since the last snapshot.
func (w *Window) Steps() int { return w.steps }

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{}
	total := w.data + w.compute
	if total > 0 {
		snap.SamplesPerSec = float64(w.samples) / total.Seconds()
	}
	if w.steps > 0 {
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(w.steps)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	}
	snap.LastDLoss = w.dLoss
	snap.LastGLoss = w.gLoss

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	SamplesPerSec float64
	AvgDataMS     float64
	AvgComputeMS  float64
	LastDLoss     float64
	LastGLoss     float64
}
