package audio

import "time"

// Clip is a mono or multi-channel waveform. Samples are stored channel-major:
// Channels[c][i] is sample i of channel c. All channels have the same length.
type Clip struct {
	Rate     int         `msgpack:"rate"`
	Channels [][]float64 `msgpack:"channels"`
}

// NewMono wraps a single channel.
func NewMono(rate int, samples []float64) *Clip {
	return &Clip{Rate: rate, Channels: [][]float64{samples}}
}

// NumChannels returns the channel count.
func (c *Clip) NumChannels() int {
	return len(c.Channels)
}

// Len returns the number of samples per channel.
func (c *Clip) Len() int {
	if len(c.Channels) == 0 {
		return 0
	}
	return len(c.Channels[0])
}

// Duration returns the clip length.
func (c *Clip) Duration() time.Duration {
	if c.Rate <= 0 {
		return 0
	}
	return time.Duration(c.Len()) * time.Second / time.Duration(c.Rate)
}

// Mono returns the first channel for mono clips and the per-sample channel
// average otherwise. The returned slice is always a fresh copy.
func (c *Clip) Mono() []float64 {
	n := c.Len()
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if len(c.Channels) == 1 {
		copy(out, c.Channels[0])
		return out
	}
	for _, ch := range c.Channels {
		for i, v := range ch {
			out[i] += v
		}
	}
	inv := 1 / float64(len(c.Channels))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// PadTo zero-pads every channel to n samples. Channels longer than n are
// left unchanged.
func (c *Clip) PadTo(n int) {
	for i, ch := range c.Channels {
		if len(ch) < n {
			padded := make([]float64, n)
			copy(padded, ch)
			c.Channels[i] = padded
		}
	}
}
