// Package mix levels and mixes clean speech with noise at a controlled
// signal-to-noise ratio.
//
// Loudness is measured as RMS in dB relative to full scale (dBFS). All
// operations return fresh slices and never modify their inputs.
package mix

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/vibvoice/vibsynth/pkg/audio/dsp"
	"github.com/vibvoice/vibsynth/pkg/config"
)

// ErrLengthMismatch is returned when clean and noise differ in length.
var ErrLengthMismatch = errors.New("mix: clean and noise lengths differ")

// Mixer holds the numeric guards shared by every mixing call.
type Mixer struct {
	// Epsilon guards divisions by peak and RMS.
	Epsilon float64

	// Ceiling is the peak amplitude the clip guard keeps outputs below,
	// less Epsilon.
	Ceiling float64
}

// NewMixer returns a Mixer using the pipeline's epsilon and clip ceiling.
func NewMixer(cfg config.Pipeline) Mixer {
	return Mixer{Epsilon: cfg.Epsilon, Ceiling: cfg.ClipCeiling}
}

// SNROptions parameterises MixWithSNR.
type SNROptions struct {
	// SNR is the target signal-to-noise ratio in dB.
	SNR float64

	// TargetDBFS is the level clean and noise are normalised to, and the
	// centre of the jittered level applied to the mixture.
	TargetDBFS float64

	// Jitter is the half-width of the uniform range the mixture level is
	// drawn from.
	Jitter float64

	// RIR holds optional room impulse responses. When several are given one
	// is picked at random and convolved with the clean signal.
	RIR [][]float64
}

// MixWithSNR mixes clean and noise at opts.SNR and returns the mixture and
// the clean reference scaled consistently with it.
func (m Mixer) MixWithSNR(rng *rand.Rand, clean, noise []float64, opts SNROptions) (noisy, cleanOut []float64, err error) {
	if len(clean) != len(noise) {
		return nil, nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(clean), len(noise))
	}

	c := clean
	if len(opts.RIR) > 0 {
		rir := opts.RIR[0]
		if len(opts.RIR) > 1 {
			rir = opts.RIR[rng.IntN(len(opts.RIR))]
		}
		c = dsp.FFTConvolve(clean, rir)[:len(clean)]
	}

	c, _ = NormAmplitude(c, m.Epsilon)
	c, _, _ = TailorDBFS(c, opts.TargetDBFS, m.Epsilon)
	cleanRMS := RMS(c)

	n, _ := NormAmplitude(noise, m.Epsilon)
	n, _, _ = TailorDBFS(n, opts.TargetDBFS, m.Epsilon)
	noiseRMS := RMS(n)

	snrScalar := cleanRMS / math.Pow(10, opts.SNR/20) / (noiseRMS + m.Epsilon)
	floats.Scale(snrScalar, n)
	noisy = make([]float64, len(c))
	floats.AddTo(noisy, c, n)

	target := jittered(rng, opts.TargetDBFS, opts.Jitter)
	noisy, _, scalar := TailorDBFS(noisy, target, m.Epsilon)
	floats.Scale(scalar, c)

	m.guard(noisy, c)
	return noisy, c, nil
}

// NormalizePair levels clean and noise independently to one jittered target
// and returns them as (noise, clean). It is used when the noisy recording is
// real rather than simulated.
func (m Mixer) NormalizePair(rng *rand.Rand, clean, noise []float64, target, jitter float64) (noiseOut, cleanOut []float64) {
	t := jittered(rng, target, jitter)

	c, _ := NormAmplitude(clean, m.Epsilon)
	c, _, _ = TailorDBFS(c, t, m.Epsilon)

	n, _ := NormAmplitude(noise, m.Epsilon)
	n, _, _ = TailorDBFS(n, t, m.Epsilon)
	return n, c
}

// guard rescales noisy and clean in place so that neither peak exceeds
// Ceiling - Epsilon.
func (m Mixer) guard(noisy, clean []float64) {
	limit := m.Ceiling - m.Epsilon
	peak := math.Max(peakAbs(noisy), peakAbs(clean))
	if peak <= limit {
		return
	}
	s := limit / peak
	floats.Scale(s, noisy)
	floats.Scale(s, clean)
}

// jittered draws uniformly from [target-jitter, target+jitter].
func jittered(rng *rand.Rand, target, jitter float64) float64 {
	if jitter == 0 {
		return target
	}
	return target - jitter + 2*jitter*rng.Float64()
}

func peakAbs(y []float64) float64 {
	p := 0.0
	for _, v := range y {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

// NormAmplitude scales y to unit peak. It returns the scaled copy and the
// peak that was divided out.
func NormAmplitude(y []float64, eps float64) ([]float64, float64) {
	peak := peakAbs(y)
	out := make([]float64, len(y))
	copy(out, y)
	floats.Scale(1/(peak+eps), out)
	return out, peak
}

// TailorDBFS scales y so its RMS level equals target dBFS. It returns the
// scaled copy, the original RMS and the applied scalar.
func TailorDBFS(y []float64, target, eps float64) (out []float64, rms, scalar float64) {
	rms = RMS(y)
	scalar = math.Pow(10, target/20) / (rms + eps)
	out = make([]float64, len(y))
	copy(out, y)
	floats.Scale(scalar, out)
	return out, rms, scalar
}

// RMS returns the root mean square of y, or 0 for an empty slice.
func RMS(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	return floats.Norm(y, 2) / math.Sqrt(float64(len(y)))
}

// DBFS returns the RMS level of y in dB relative to full scale.
func DBFS(y []float64) float64 {
	return 20 * math.Log10(RMS(y))
}

// IsClipped reports whether any sample magnitude exceeds ceiling.
func IsClipped(y []float64, ceiling float64) bool {
	return peakAbs(y) > ceiling
}
