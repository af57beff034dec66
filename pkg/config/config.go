// Package config holds the immutable pipeline configuration shared by every
// synthesis component.
//
// A Pipeline is built once (Default, optionally overlaid with a YAML file via
// Load) and passed by value into each constructor. Nothing in the module reads
// package-level settings.
//
// Default values reproduce the VibVoice training setup:
//
//	MicRate:        16000
//	IMURate:         1600
//	MicWindow:        640 (overlap 320)
//	IMUWindow:         64 (overlap 32)
//	SegmentSeconds:     3 (stride 2)
//	Population:       300
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// StorageConfig selects the backend that corpora are read from.
type StorageConfig struct {
	// Backend is "local" (default) or "s3".
	Backend string `yaml:"backend,omitempty"`

	// Root is the local root directory.
	Root string `yaml:"root,omitempty"`

	// Bucket, Prefix, Region and Endpoint configure the s3 backend.
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// CacheConfig selects the decoded-segment cache.
type CacheConfig struct {
	// Backend is "none" (default), "memory" or "badger".
	Backend string `yaml:"backend,omitempty"`

	// Dir is the badger data directory.
	Dir string `yaml:"dir,omitempty"`

	// MaxBytes bounds the encoded segments the memory backend holds.
	// Least valuable segments are evicted past it.
	MaxBytes int64 `yaml:"max_bytes,omitempty"`
}

// Pipeline is the full set of constants used by the synthesis pipeline.
type Pipeline struct {
	MicRate    int `yaml:"mic_rate"`
	IMURate    int `yaml:"imu_rate"`
	MicWindow  int `yaml:"mic_window"`
	MicOverlap int `yaml:"mic_overlap"`
	IMUWindow  int `yaml:"imu_window"`
	IMUOverlap int `yaml:"imu_overlap"`

	// SegmentSeconds is the example length. Zero means one example per file.
	SegmentSeconds float64 `yaml:"segment_seconds"`
	StrideSeconds  float64 `yaml:"stride_seconds"`
	Pad            bool    `yaml:"pad"`

	// Population is the canonical transfer-function population size N.
	Population int `yaml:"population"`

	HighpassHz    float64 `yaml:"highpass_hz"`
	HighpassOrder int     `yaml:"highpass_order"`

	// SensorScale divides raw accelerometer counts from text logs.
	SensorScale float64 `yaml:"sensor_scale"`

	NoiseGain          float64 `yaml:"noise_gain"`
	AnalysisBandFactor int     `yaml:"analysis_band_factor"`

	TargetDBFS float64 `yaml:"target_dbfs"`
	DBFSJitter float64 `yaml:"dbfs_jitter"`
	SNRMin     int     `yaml:"snr_min"`
	SNRMax     int     `yaml:"snr_max"`

	Epsilon     float64 `yaml:"epsilon"`
	ClipCeiling float64 `yaml:"clip_ceiling"`

	TransferDir string `yaml:"transfer_dir"`
	NoiseDir    string `yaml:"noise_dir"`

	Storage StorageConfig `yaml:"storage,omitempty"`
	Cache   CacheConfig   `yaml:"cache,omitempty"`
}

// Default returns the configuration used to train the released models.
func Default() Pipeline {
	return Pipeline{
		MicRate:            16000,
		IMURate:            1600,
		MicWindow:          640,
		MicOverlap:         320,
		IMUWindow:          64,
		IMUOverlap:         32,
		SegmentSeconds:     3,
		StrideSeconds:      2,
		Population:         300,
		HighpassHz:         100,
		HighpassOrder:      4,
		SensorScale:        1 << 14,
		NoiseGain:          2,
		AnalysisBandFactor: 8,
		TargetDBFS:         -25,
		DBFSJitter:         10,
		SNRMin:             -5,
		SNRMax:             19,
		Epsilon:            1e-6,
		ClipCeiling:        0.99,
		TransferDir:        "transfer_function",
		NoiseDir:           "noise",
		Storage:            StorageConfig{Backend: "local", Root: "."},
		Cache:              CacheConfig{Backend: "none", MaxBytes: 256 << 20},
	}
}

// Load reads a YAML file on top of Default. Fields missing from the file keep
// their default values. An empty path returns the defaults.
func Load(path string) (Pipeline, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Pipeline{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Pipeline{}, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (p Pipeline) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// FreqBinHigh is the number of microphone STFT bins reachable by the motion
// sensor given its rate ratio to the microphone.
func (p Pipeline) FreqBinHigh() int {
	return p.IMURate*(p.MicWindow/2)/p.MicRate + 1
}

// MicBins is the number of bins in a full microphone spectrogram.
func (p Pipeline) MicBins() int {
	return p.MicWindow/2 + 1
}

// AnalysisBins is the number of bins kept after truncating the noisy and clean
// spectrograms.
func (p Pipeline) AnalysisBins() int {
	return p.AnalysisBandFactor * p.FreqBinHigh()
}

// TimeBins is the number of STFT frames in one segment.
func (p Pipeline) TimeBins() int {
	return int(p.SegmentSeconds*float64(p.MicRate)/float64(p.MicWindow-p.MicOverlap)) + 1
}

// SNRs returns the discrete SNR set (dB) used in simulation mode.
func (p Pipeline) SNRs() []float64 {
	out := make([]float64, 0, p.SNRMax-p.SNRMin+1)
	for s := p.SNRMin; s <= p.SNRMax; s++ {
		out = append(out, float64(s))
	}
	return out
}

// Validate reports the first inconsistent setting.
func (p Pipeline) Validate() error {
	switch {
	case p.MicRate <= 0 || p.IMURate <= 0:
		return errors.New("config: sample rates must be positive")
	case p.MicWindow <= 0 || p.IMUWindow <= 0:
		return errors.New("config: STFT windows must be positive")
	case p.MicOverlap < 0 || p.MicOverlap >= p.MicWindow:
		return fmt.Errorf("config: mic_overlap %d out of range [0, %d)", p.MicOverlap, p.MicWindow)
	case p.IMUOverlap < 0 || p.IMUOverlap >= p.IMUWindow:
		return fmt.Errorf("config: imu_overlap %d out of range [0, %d)", p.IMUOverlap, p.IMUWindow)
	case p.SegmentSeconds < 0:
		return errors.New("config: segment_seconds must not be negative")
	case p.SegmentSeconds > 0 && p.StrideSeconds <= 0:
		return errors.New("config: stride_seconds must be positive when segment_seconds is set")
	case p.Population < 1:
		return errors.New("config: population must be at least 1")
	case p.HighpassHz <= 0 || p.HighpassOrder < 1:
		return errors.New("config: invalid high-pass filter")
	case p.SensorScale == 0:
		return errors.New("config: sensor_scale must not be zero")
	case p.SNRMin > p.SNRMax:
		return fmt.Errorf("config: snr_min %d > snr_max %d", p.SNRMin, p.SNRMax)
	case p.DBFSJitter < 0:
		return errors.New("config: dbfs_jitter must not be negative")
	case p.Epsilon <= 0:
		return errors.New("config: epsilon must be positive")
	case p.ClipCeiling <= p.Epsilon || p.ClipCeiling > 1:
		return fmt.Errorf("config: clip_ceiling %g out of range", p.ClipCeiling)
	case p.AnalysisBandFactor < 1 || p.AnalysisBins() > p.MicBins():
		return fmt.Errorf("config: analysis band of %d bins exceeds %d mic bins", p.AnalysisBins(), p.MicBins())
	}
	switch p.Storage.Backend {
	case "", "local", "s3":
	default:
		return fmt.Errorf("config: unknown storage backend %q", p.Storage.Backend)
	}
	switch p.Cache.Backend {
	case "", "none", "memory", "badger":
	default:
		return fmt.Errorf("config: unknown cache backend %q", p.Cache.Backend)
	}
	if p.Cache.MaxBytes < 0 {
		return fmt.Errorf("config: negative cache max_bytes %d", p.Cache.MaxBytes)
	}
	return nil
}
