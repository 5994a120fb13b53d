package trainer

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"ganforge/internal/metrics"
	"ganforge/internal/model"
	"ganforge/internal/nn"
)

const testLatent = 3

func aaeConfig() Config {
	cfg := testConfig()
	cfg.Variant = VariantAAE
	cfg.Sampling = SamplingRandom
	cfg.IterationsPerEpoch = 1
	cfg.HalfBatch = true
	cfg.BatchSize = 4
	cfg.Reduction = ReductionMean
	cfg.Noise = NoiseNormal
	cfg.ReconWeight = 0.999
	cfg.AdvWeight = 0.001
	return cfg
}

func newTestAAE(t *testing.T, cfg Config, opts ...Option) *AAE {
	t.Helper()
	rng := rand.New(rand.NewSource(5))
	enc := model.NewEncoder(testShape, testLatent, []int{8}, rng)
	dec := model.NewDecoder(testLatent, testShape, []int{8}, model.OutputTanh, rng)
	disc := model.NewDiscriminator(testLatent, []int{8}, rng)
	opts = append([]Option{WithProgress(io.Discard)}, opts...)
	a, err := NewAAE(cfg, constantSource(t, 6, 0.25), enc, dec, disc, opts...)
	if err != nil {
		t.Fatalf("NewAAE: %v", err)
	}
	return a
}

func TestReconstructPreservesShape(t *testing.T) {
	a := newTestAAE(t, aaeConfig())
	for _, n := range []int{1, 5} {
		x := mat.NewDense(n, testShape.Size(), nil)
		out, err := a.Reconstruct(x)
		if err != nil {
			t.Fatalf("Reconstruct: %v", err)
		}
		if r, c := out.Dims(); r != n || c != testShape.Size() {
			t.Fatalf("reconstruction is %dx%d, want %dx%d", r, c, n, testShape.Size())
		}
	}
}

func TestAAEStepsTouchOnlyTheirParams(t *testing.T) {
	a := newTestAAE(t, aaeConfig())
	real := mat.NewDense(2, testShape.Size(), []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8})

	encSnap := nn.Snapshot(a.enc.Params())
	decSnap := nn.Snapshot(a.dec.Params())
	if _, _, err := a.DiscriminatorStep(real); err != nil {
		t.Fatalf("DiscriminatorStep: %v", err)
	}
	if !nn.SnapshotEqual(a.enc.Params(), encSnap) || !nn.SnapshotEqual(a.dec.Params(), decSnap) {
		t.Fatalf("discriminator step changed the autoencoder")
	}

	dSnap := nn.Snapshot(a.disc.Params())
	total, mse, err := a.AutoencoderStep(real)
	if err != nil {
		t.Fatalf("AutoencoderStep: %v", err)
	}
	if !nn.SnapshotEqual(a.disc.Params(), dSnap) {
		t.Fatalf("autoencoder step changed the discriminator")
	}
	if nn.SnapshotEqual(a.enc.Params(), encSnap) || nn.SnapshotEqual(a.dec.Params(), decSnap) {
		t.Fatalf("autoencoder step did not update encoder and decoder")
	}
	if total < 0.999*mse {
		t.Fatalf("total loss %f below weighted mse %f", total, 0.999*mse)
	}
}

func TestAutoencoderStepReducesReconstruction(t *testing.T) {
	cfg := aaeConfig()
	cfg.LearningRateG = 0.01
	a := newTestAAE(t, cfg)
	real := mat.NewDense(2, testShape.Size(), []float64{0.5, -0.5, 0.5, -0.5, -0.5, 0.5, -0.5, 0.5})
	_, first, err := a.AutoencoderStep(real)
	if err != nil {
		t.Fatalf("AutoencoderStep: %v", err)
	}
	last := first
	for i := 0; i < 300; i++ {
		if _, last, err = a.AutoencoderStep(real); err != nil {
			t.Fatalf("AutoencoderStep: %v", err)
		}
	}
	if last >= first {
		t.Fatalf("reconstruction error did not drop: first=%f last=%f", first, last)
	}
}

func TestAAERun(t *testing.T) {
	cfg := aaeConfig()
	cfg.Epochs = 4
	cfg.SaveInterval = 2
	var out bytes.Buffer
	s := &recordingSampler{}
	a := newTestAAE(t, cfg, WithProgress(&out), WithSampler(s))
	h, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, name := range []string{metrics.DLoss, metrics.GLoss, metrics.DAcc, metrics.MSE} {
		if h.Len(name) != 4 {
			t.Fatalf("%s has %d entries, want 4", name, h.Len(name))
		}
	}
	if len(s.steps) != 2 || s.rows[0] != 4 {
		t.Fatalf("unexpected sampler calls %v rows %v", s.steps, s.rows)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "0 [D loss: ") || !strings.Contains(lines[3], ", mse: ") {
		t.Fatalf("unexpected progress %q", out.String())
	}
}

func TestNewAAERejectsLatentMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	enc := model.NewEncoder(testShape, testLatent, []int{8}, rng)
	dec := model.NewDecoder(testLatent, testShape, []int{8}, model.OutputTanh, rng)
	disc := model.NewDiscriminator(testLatent+1, []int{8}, rng)
	if _, err := NewAAE(aaeConfig(), constantSource(t, 4, 0), enc, dec, disc); err == nil {
		t.Fatalf("expected latent mismatch error")
	}
}

func TestBuildBothVariants(t *testing.T) {
	rc := RunConfig{Config: testConfig(), LatentDim: 4, GHidden: []int{8}, DHidden: []int{8}, Output: model.OutputSigmoid}
	h, err := Run(context.Background(), rc, constantSource(t, 4, 0.5), WithProgress(io.Discard))
	if err != nil {
		t.Fatalf("Run gan: %v", err)
	}
	if h.Len(metrics.GLoss) != 2 {
		t.Fatalf("gan: expected 2 iterations, got %d", h.Len(metrics.GLoss))
	}

	rc.Config = aaeConfig()
	rc.Output = model.OutputTanh
	tr, err := Build(rc, constantSource(t, 4, 0.5), WithProgress(io.Discard))
	if err != nil {
		t.Fatalf("Build aae: %v", err)
	}
	if _, ok := tr.(*AAE); !ok {
		t.Fatalf("expected *AAE, got %T", tr)
	}
}

func TestAAEEmptySourceRendersError(t *testing.T) {
	cfg := aaeConfig()
	cfg.SaveInterval = 0
	rng := rand.New(rand.NewSource(5))
	enc := model.NewEncoder(testShape, testLatent, []int{8}, rng)
	dec := model.NewDecoder(testLatent, testShape, []int{8}, model.OutputTanh, rng)
	disc := model.NewDiscriminator(testLatent, []int{8}, rng)
	s := &recordingSampler{}
	a, err := NewAAE(cfg, constantSource(t, 0, 0), enc, dec, disc, WithProgress(io.Discard), WithSampler(s))
	if err != nil {
		t.Fatalf("NewAAE: %v", err)
	}
	h, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.Len(metrics.DLoss) != 0 {
		t.Fatalf("expected no iterations, got %d", h.Len(metrics.DLoss))
	}
	if len(s.steps) != 1 || len(s.rows) != 0 {
		t.Fatalf("expected one failed render, got steps=%v rows=%v", s.steps, s.rows)
	}
}
