package resampler

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/vibvoice/vibsynth/pkg/audio"
)

// OutputLen returns the number of samples n input samples occupy at the
// destination rate.
func OutputLen(n, srcRate, dstRate int) int {
	return int(math.Round(float64(n) * float64(dstRate) / float64(srcRate)))
}

// Resample converts a single channel from srcRate to dstRate. Equal rates
// return a copy of x.
func Resample(x []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	if srcRate == dstRate || len(x) == 0 {
		out := make([]float64, len(x))
		copy(out, x)
		return out, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	y, err := r.Process(x)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	return fit(y, OutputLen(len(x), srcRate, dstRate)), nil
}

// Clip resamples every channel of c to rate.
func Clip(c *audio.Clip, rate int) (*audio.Clip, error) {
	out := &audio.Clip{Rate: rate, Channels: make([][]float64, len(c.Channels))}
	for i, ch := range c.Channels {
		y, err := Resample(ch, c.Rate, rate)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", i, err)
		}
		out.Channels[i] = y
	}
	return out, nil
}

// fit truncates or zero-pads y to n samples.
func fit(y []float64, n int) []float64 {
	if len(y) == n {
		return y
	}
	out := make([]float64, n)
	copy(out, y)
	return out
}
