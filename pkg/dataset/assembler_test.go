package dataset

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/vibvoice/vibsynth/pkg/audio/dsp"
	"github.com/vibvoice/vibsynth/pkg/config"
	"github.com/vibvoice/vibsynth/pkg/noise"
	"github.com/vibvoice/vibsynth/pkg/segcache"
	"github.com/vibvoice/vibsynth/pkg/synth"
	"github.com/vibvoice/vibsynth/pkg/transfer"
)

const fixtureSamples = 56000 // 3.5 s at 16 kHz

type fixture struct {
	cfg     config.Pipeline
	deps    Deps
	streams Streams
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Population = 8
	dir := t.TempDir()
	rng := rand.New(rand.NewPCG(3, 4))

	speech := tone(200, 0.3, 16000, fixtureSamples)
	noisy := hiss(rng, 0.05, fixtureSamples)
	for i := range noisy {
		noisy[i] += speech[i]
	}
	writeWAV(t, dir, "speech.wav", 16000, 1, pcm(speech))
	writeWAV(t, dir, "noisy.wav", 16000, 1, pcm(noisy))
	writeWAV(t, dir, "noise.wav", 16000, 1, pcm(hiss(rng, 0.2, fixtureSamples)))
	writeSensorLog(t, dir, "imu.txt", fixtureSamples/10)

	bins := cfg.FreqBinHigh()
	records := make([]transfer.Record, 3)
	for i := range records {
		records[i] = transfer.Record{Response: make([]float64, bins), Variance: make([]float64, bins)}
		for j := range bins {
			records[i].Response[j] = float64(i+1) / float64(j+1)
			records[i].Variance[j] = 0.01
		}
	}
	pop, err := transfer.Resample(records, cfg.Population)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	bg := make([]float64, bins*200)
	for i := range bg {
		bg[i] = rng.Float64() * 1e-3
	}
	bank, err := noise.NewBank([]*mat.Dense{mat.NewDense(bins, 200, bg)}, bins)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	gen, err := synth.New(pop, bank, cfg)
	if err != nil {
		t.Fatalf("synth.New: %v", err)
	}

	cache, err := segcache.NewMemory(0)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	label := 1
	return &fixture{
		cfg:  cfg,
		deps: Deps{FS: newLocal(t, dir), Generator: gen, Cache: cache},
		streams: Streams{
			Speech: []Entry{{Path: "speech.wav", Samples: fixtureSamples, Kind: SourceAudio, LabelIndex: &label}},
			Noise:  []Entry{{Path: "noisy.wav", Samples: fixtureSamples, Kind: SourceAudio}},
		},
	}
}

func checkSpec(t *testing.T, name string, s dsp.Spectrogram, bins, frames int) {
	t.Helper()
	if s.Bins != bins || s.Frames != frames || len(s.Data) != bins*frames {
		t.Fatalf("%s = %dx%d (%d values), want %dx%d", name, s.Bins, s.Frames, len(s.Data), bins, frames)
	}
	for i, v := range s.Data {
		if math.IsNaN(real(v)) || math.IsNaN(imag(v)) || math.IsInf(real(v), 0) || math.IsInf(imag(v), 0) {
			t.Fatalf("%s value %d = %v", name, i, v)
		}
	}
}

func checkIMU(t *testing.T, m *mat.Dense, bins, frames int) {
	t.Helper()
	r, c := m.Dims()
	if r != bins || c != frames {
		t.Fatalf("IMU = %dx%d, want %dx%d", r, c, bins, frames)
	}
	for i := range r {
		for j := range c {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("IMU[%d,%d] = %v", i, j, v)
			}
		}
	}
}

func TestNoisyCleanSetModes(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		realIMU bool
	}{
		{"paired synthetic", Options{}, false},
		{"simulation synthetic", Options{Simulation: true}, false},
		{"paired real", Options{}, true},
		{"simulation text", Options{Simulation: true, Text: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			streams := fx.streams
			if tt.realIMU {
				streams.IMU = []Entry{{Path: "imu.txt", Samples: fixtureSamples / 10, Kind: SourceText}}
			}
			if tt.opts.Simulation {
				streams.Noise = []Entry{{Path: "noise.wav", Samples: fixtureSamples, Kind: SourceAudio}}
			}
			set, err := NewNoisyCleanSet(fx.cfg, streams, tt.opts, fx.deps)
			if err != nil {
				t.Fatalf("NewNoisyCleanSet: %v", err)
			}
			if set.Len() != 1 {
				t.Fatalf("Len = %d, want 1", set.Len())
			}
			if set.Augmented() == tt.realIMU {
				t.Errorf("Augmented = %v", set.Augmented())
			}

			tup, err := set.Example(context.Background(), 0, rand.New(rand.NewPCG(1, 2)))
			if err != nil {
				t.Fatalf("Example: %v", err)
			}
			frames := fx.cfg.TimeBins()
			checkSpec(t, "Noisy", tup.Noisy, fx.cfg.AnalysisBins(), frames)
			checkSpec(t, "Clean", tup.Clean, fx.cfg.AnalysisBins(), frames)
			checkIMU(t, tup.IMU, fx.cfg.FreqBinHigh(), frames)

			if tt.opts.Text {
				if len(tup.Label) == 0 || tup.Label[0] != "WE" {
					t.Errorf("Label = %v", tup.Label)
				}
			} else if tup.Label != nil {
				t.Errorf("Label = %v, want none", tup.Label)
			}
		})
	}
}

func TestNoisyCleanSetDeterministic(t *testing.T) {
	fx := newFixture(t)
	streams := fx.streams
	streams.Noise = []Entry{{Path: "noise.wav", Samples: fixtureSamples, Kind: SourceAudio}}
	set, err := NewNoisyCleanSet(fx.cfg, streams, Options{Simulation: true}, fx.deps)
	if err != nil {
		t.Fatalf("NewNoisyCleanSet: %v", err)
	}
	a, err := set.Example(context.Background(), 0, rand.New(rand.NewPCG(9, 9)))
	if err != nil {
		t.Fatalf("Example: %v", err)
	}
	b, err := set.Example(context.Background(), 0, rand.New(rand.NewPCG(9, 9)))
	if err != nil {
		t.Fatalf("Example: %v", err)
	}
	if !mat.Equal(a.IMU, b.IMU) {
		t.Error("IMU differs for the same seed")
	}
	for i := range a.Noisy.Data {
		if a.Noisy.Data[i] != b.Noisy.Data[i] {
			t.Fatalf("Noisy[%d] differs for the same seed", i)
		}
	}
}

func TestNoisyCleanSetRatio(t *testing.T) {
	fx := newFixture(t)
	set, err := NewNoisyCleanSet(fx.cfg, fx.streams, Options{Ratio: 2}, fx.deps)
	if err != nil {
		t.Fatalf("NewNoisyCleanSet: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("Len = %d, want 2", set.Len())
	}
	if _, err := set.Example(context.Background(), 1, rand.New(rand.NewPCG(1, 1))); err != nil {
		t.Errorf("Example(1): %v", err)
	}

	half, err := NewNoisyCleanSet(fx.cfg, fx.streams, Options{Ratio: 0.5}, fx.deps)
	if err != nil {
		t.Fatalf("NewNoisyCleanSet: %v", err)
	}
	if half.Len() != 0 {
		t.Errorf("Len = %d, want 0", half.Len())
	}
}

func TestNoisyCleanSetErrors(t *testing.T) {
	fx := newFixture(t)

	if _, err := NewNoisyCleanSet(fx.cfg, Streams{Speech: fx.streams.Speech}, Options{}, fx.deps); err == nil {
		t.Error("NewNoisyCleanSet without noise succeeded")
	}
	noGen := fx.deps
	noGen.Generator = nil
	if _, err := NewNoisyCleanSet(fx.cfg, fx.streams, Options{}, noGen); err == nil {
		t.Error("NewNoisyCleanSet without generator or IMU succeeded")
	}

	set, err := NewNoisyCleanSet(fx.cfg, fx.streams, Options{}, fx.deps)
	if err != nil {
		t.Fatalf("NewNoisyCleanSet: %v", err)
	}
	rng := rand.New(rand.NewPCG(1, 1))
	for _, i := range []int{-1, 1} {
		if _, err := set.Example(context.Background(), i, rng); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Example(%d) error = %v, want ErrOutOfRange", i, err)
		}
	}

	streams := fx.streams
	streams.Speech = []Entry{{Path: "speech.wav", Samples: fixtureSamples, Kind: SourceAudio}}
	unlabeled, err := NewNoisyCleanSet(fx.cfg, streams, Options{Text: true}, fx.deps)
	if err != nil {
		t.Fatalf("NewNoisyCleanSet: %v", err)
	}
	if _, err := unlabeled.Example(context.Background(), 0, rng); !errors.Is(err, ErrNoLabel) {
		t.Errorf("Example without label error = %v, want ErrNoLabel", err)
	}
}
