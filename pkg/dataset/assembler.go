package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/vibvoice/vibsynth/pkg/audio/dsp"
	"github.com/vibvoice/vibsynth/pkg/config"
	"github.com/vibvoice/vibsynth/pkg/mix"
	"github.com/vibvoice/vibsynth/pkg/segcache"
	"github.com/vibvoice/vibsynth/pkg/storage"
	"github.com/vibvoice/vibsynth/pkg/synth"
)

// Streams lists the files of each input stream. Speech holds clean
// recordings. Noise holds noise clips in simulation mode or the paired noisy
// recordings otherwise. IMU holds real sensor recordings; when empty the
// sensor spectrogram is synthesized from clean speech.
type Streams struct {
	Speech []Entry
	Noise  []Entry
	IMU    []Entry
}

// Options selects the assembly mode.
type Options struct {
	// Simulation mixes a random noise clip at a random SNR instead of using
	// the paired noisy recording.
	Simulation bool

	// Text attaches the transcript of each speech recording.
	Text bool

	// Ratio scales the number of exposed examples. Zero means 1. With a
	// ratio above 1 example numbers wrap around the speech stream.
	Ratio float64
}

// Deps carries the shared resources of a NoisyCleanSet.
type Deps struct {
	FS storage.FileStore

	// Generator synthesizes sensor spectrograms. Required when
	// Streams.IMU is empty.
	Generator *synth.Generator

	// Cache is shared by every stream reader. Optional.
	Cache segcache.Store

	Logger *slog.Logger
}

// Tuple is one training example. Noisy and Clean are truncated to the
// analysis band; IMU is a [freq_bin_high, T] magnitude.
type Tuple struct {
	IMU   *mat.Dense
	Noisy dsp.Spectrogram
	Clean dsp.Spectrogram
	Label []string
}

// NoisyCleanSet assembles Tuples from speech, noise and sensor streams.
// It is immutable after construction; Example may be called concurrently.
type NoisyCleanSet struct {
	cfg  config.Pipeline
	opts Options

	speech *Index
	noise  *Index
	imu    *Index

	mic    *Reader
	sensor *Reader

	gen     *synth.Generator
	mixer   mix.Mixer
	micSTFT *dsp.STFT
	imuSTFT *dsp.STFT
	snrs    []float64
	logger  *slog.Logger
}

// NewNoisyCleanSet indexes the streams and prepares their readers.
func NewNoisyCleanSet(cfg config.Pipeline, streams Streams, opts Options, deps Deps) (*NoisyCleanSet, error) {
	if len(streams.Noise) == 0 {
		return nil, errors.New("dataset: noise stream is empty")
	}
	if len(streams.IMU) == 0 && deps.Generator == nil {
		return nil, errors.New("dataset: a generator is required without an IMU stream")
	}
	if opts.Ratio == 0 {
		opts.Ratio = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := WindowOf(cfg)
	s := &NoisyCleanSet{
		cfg:     cfg,
		opts:    opts,
		speech:  NewIndex(streams.Speech, w, cfg.MicRate),
		noise:   NewIndex(streams.Noise, w, cfg.MicRate),
		gen:     deps.Generator,
		mixer:   mix.NewMixer(cfg),
		micSTFT: dsp.NewSTFT(cfg.MicWindow, cfg.MicOverlap),
		imuSTFT: dsp.NewSTFT(cfg.IMUWindow, cfg.IMUOverlap),
		snrs:    cfg.SNRs(),
		logger:  logger,
	}

	var err error
	ropts := ReaderOptions{Cache: deps.Cache, Logger: logger}
	if s.mic, err = NewReader(deps.FS, cfg, cfg.MicRate, ropts); err != nil {
		return nil, err
	}
	if len(streams.IMU) > 0 {
		s.imu = NewIndex(streams.IMU, w, cfg.IMURate)
		if s.sensor, err = NewReader(deps.FS, cfg, cfg.IMURate, ropts); err != nil {
			return nil, err
		}
	}

	logger.Info("dataset assembled",
		"speech", s.speech.Len(),
		"noise", s.noise.Len(),
		"synthetic_imu", s.imu == nil,
		"simulation", opts.Simulation,
		"len", s.Len())
	return s, nil
}

// Len returns the number of exposed examples.
func (s *NoisyCleanSet) Len() int {
	return int(math.Floor(float64(s.speech.Len()) * s.opts.Ratio))
}

// Augmented reports whether sensor spectrograms are synthesized.
func (s *NoisyCleanSet) Augmented() bool { return s.imu == nil }

// Example builds example i using rng for every random choice.
func (s *NoisyCleanSet) Example(ctx context.Context, i int, rng *rand.Rand) (*Tuple, error) {
	if i < 0 || i >= s.Len() {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, s.Len())
	}

	sc, err := s.speech.Resolve(wrap(i, s.speech.Len()))
	if err != nil {
		return nil, err
	}
	speechClip, err := s.mic.Read(ctx, sc)
	if err != nil {
		return nil, err
	}
	clean := speechClip.Mono()

	var noisy []float64
	if s.opts.Simulation {
		nc, err := s.noise.Resolve(rng.IntN(max(s.noise.Len(), 1)))
		if err != nil {
			return nil, err
		}
		noiseClip, err := s.mic.Read(ctx, nc)
		if err != nil {
			return nil, err
		}
		snr := s.snrs[rng.IntN(len(s.snrs))]
		noisy, clean, err = s.mixer.MixWithSNR(rng, clean, fit(noiseClip.Mono(), len(clean)), mix.SNROptions{
			SNR:        snr,
			TargetDBFS: s.cfg.TargetDBFS,
			Jitter:     s.cfg.DBFSJitter,
		})
		if err != nil {
			return nil, err
		}
	} else {
		nc, err := s.noise.Resolve(wrap(i, s.noise.Len()))
		if err != nil {
			return nil, err
		}
		noiseClip, err := s.mic.Read(ctx, nc)
		if err != nil {
			return nil, err
		}
		noisy, clean = s.mixer.NormalizePair(rng, clean, fit(noiseClip.Mono(), len(clean)), s.cfg.TargetDBFS, s.cfg.DBFSJitter)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	noisySpec := s.micSTFT.Transform(noisy)
	cleanSpec := s.micSTFT.Transform(clean)

	var imu *mat.Dense
	if s.imu == nil {
		imu, err = s.gen.Synthesize(rng, cleanSpec.Magnitude())
		if err != nil {
			return nil, err
		}
	} else {
		ic, err := s.imu.Resolve(wrap(i, s.imu.Len()))
		if err != nil {
			return nil, err
		}
		imuClip, err := s.sensor.Read(ctx, ic)
		if err != nil {
			return nil, err
		}
		imu = s.imuSTFT.Magnitude(imuClip.Channels)
	}

	bins := s.cfg.AnalysisBins()
	t := &Tuple{
		IMU:   imu,
		Noisy: noisySpec.Truncate(bins),
		Clean: cleanSpec.Truncate(bins),
	}
	if s.opts.Text {
		if t.Label, err = Label(sc.Entry); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func wrap(i, n int) int {
	if n == 0 {
		return i
	}
	return i % n
}

// fit truncates or zero-pads x to n samples.
func fit(x []float64, n int) []float64 {
	if len(x) == n {
		return x
	}
	out := make([]float64, n)
	copy(out, x)
	return out
}
