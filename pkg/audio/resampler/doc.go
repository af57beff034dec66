// Package resampler converts float waveforms between sample rates.
//
// Conversion uses a pure Go polyphase resampler at high quality. Output
// lengths are fixed to round(n * dst / src) so that downstream STFT frame
// counts depend only on the clip duration.
//
// Example usage:
//
//	y, err := resampler.Resample(x, 48000, 16000)
//	if err != nil {
//	    return err
//	}
package resampler
