// Package audio provides the waveform type shared by the synthesis pipeline.
//
// This package serves as an umbrella for audio-related sub-packages:
//
//   - dsp: short-time Fourier analysis, Butterworth filtering, convolution
//   - resampler: sample-rate conversion of float waveforms
//
// Example usage:
//
//	import (
//	    "github.com/vibvoice/vibsynth/pkg/audio"
//	    "github.com/vibvoice/vibsynth/pkg/audio/dsp"
//	)
//
//	clip := audio.NewMono(16000, samples)
//	spec := dsp.NewSTFT(640, 320).Transform(clip.Mono())
package audio
