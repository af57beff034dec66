package dataset

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/go-audio/wav"

	"github.com/vibvoice/vibsynth/pkg/audio"
	"github.com/vibvoice/vibsynth/pkg/audio/dsp"
	"github.com/vibvoice/vibsynth/pkg/audio/resampler"
	"github.com/vibvoice/vibsynth/pkg/config"
	"github.com/vibvoice/vibsynth/pkg/segcache"
	"github.com/vibvoice/vibsynth/pkg/storage"
)

// SegmentLoader decodes samples [offset, offset+length) of a file at rate.
// A loader may return fewer samples when the file ends early.
type SegmentLoader interface {
	Load(ctx context.Context, fs storage.FileStore, path string, offset, length, rate int) (*audio.Clip, error)
}

// TextSensorLoader reads accelerometer logs: one whitespace-separated row
// per sample whose first three columns are the x, y and z axes. Trailing
// columns such as timestamps are ignored. Values are divided by Scale.
type TextSensorLoader struct {
	Scale float64
}

// sensorAxes is the number of leading columns read from a sensor log.
const sensorAxes = 3

func (l TextSensorLoader) Load(ctx context.Context, fs storage.FileStore, path string, offset, length, rate int) (*audio.Clip, error) {
	data, err := storage.ReadAll(ctx, fs, path)
	if err != nil {
		return nil, err
	}
	scale := l.Scale
	if scale == 0 {
		scale = 1
	}

	clip := &audio.Clip{Rate: rate}
	sc := bufio.NewScanner(bytes.NewReader(data))
	row := 0
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if row >= offset+length {
			break
		}
		if len(fields) < sensorAxes {
			return nil, fmt.Errorf("dataset: %s row %d: %d columns, want at least %d", path, row+1, len(fields), sensorAxes)
		}
		if row >= offset {
			if clip.Channels == nil {
				clip.Channels = make([][]float64, sensorAxes)
				for c := range clip.Channels {
					clip.Channels[c] = make([]float64, 0, length)
				}
			}
			for c := range sensorAxes {
				v, err := strconv.ParseFloat(fields[c], 64)
				if err != nil {
					return nil, fmt.Errorf("dataset: %s row %d: %w", path, row+1, err)
				}
				clip.Channels[c] = append(clip.Channels[c], v/scale)
			}
		}
		row++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dataset: scan %s: %w", path, err)
	}
	if clip.Channels == nil {
		clip.Channels = make([][]float64, sensorAxes)
	}
	return clip, nil
}

// AudioDecodeLoader decodes WAV files, downmixes them to mono and resamples
// them to the requested rate.
type AudioDecodeLoader struct{}

func (AudioDecodeLoader) Load(ctx context.Context, fs storage.FileStore, path string, offset, length, rate int) (*audio.Clip, error) {
	data, err := storage.ReadAll(ctx, fs, path)
	if err != nil {
		return nil, err
	}
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("dataset: %s: not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("dataset: decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate < 1 {
		return nil, fmt.Errorf("dataset: %s: missing format", path)
	}

	chans := buf.Format.NumChannels
	srcRate := buf.Format.SampleRate
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = int(dec.BitDepth)
	}
	full := math.Ldexp(1, depth-1)
	frames := len(buf.Data) / chans

	// Cut the window at the source rate before resampling.
	start := min(resampler.OutputLen(offset, rate, srcRate), frames)
	end := min(start+resampler.OutputLen(length, rate, srcRate), frames)

	mono := make([]float64, end-start)
	for i := range mono {
		sum := 0
		for c := range chans {
			sum += buf.Data[(start+i)*chans+c]
		}
		mono[i] = float64(sum) / float64(chans) / full
	}

	if srcRate != rate {
		if mono, err = resampler.Resample(mono, srcRate, rate); err != nil {
			return nil, fmt.Errorf("dataset: %s: %w", path, err)
		}
	}
	if len(mono) > length {
		mono = mono[:length]
	}
	return audio.NewMono(rate, mono), nil
}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// Cache stores filtered segments. Nil disables caching.
	Cache segcache.Store

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Reader loads example windows of one stream at a fixed rate and applies
// the mandatory high-pass filter.
type Reader struct {
	fs      storage.FileStore
	rate    int
	hp      *dsp.Highpass
	loaders map[SourceKind]SegmentLoader
	cache   segcache.Store
	logger  *slog.Logger
}

// NewReader creates a Reader for a stream sampled at rate.
func NewReader(fs storage.FileStore, cfg config.Pipeline, rate int, opts ReaderOptions) (*Reader, error) {
	hp, err := dsp.NewHighpass(cfg.HighpassOrder, cfg.HighpassHz, float64(rate))
	if err != nil {
		return nil, fmt.Errorf("dataset: high-pass at %d Hz: %w", rate, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		fs:   fs,
		rate: rate,
		hp:   hp,
		loaders: map[SourceKind]SegmentLoader{
			SourceAudio: AudioDecodeLoader{},
			SourceText:  TextSensorLoader{Scale: cfg.SensorScale},
		},
		cache:  opts.Cache,
		logger: logger,
	}, nil
}

// Rate returns the output sample rate.
func (r *Reader) Rate() int { return r.rate }

// Read loads the window at c, zero-pads it to full length and high-pass
// filters every channel.
func (r *Reader) Read(ctx context.Context, c Coordinate) (*audio.Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offset := int(math.Round(c.Offset * float64(r.rate)))
	length := c.Entry.Samples
	if c.Duration > 0 {
		length = int(math.Round(c.Duration * float64(r.rate)))
	}
	key := segcache.Key{Path: c.Entry.Path, Offset: offset, Length: length, Rate: r.rate}

	if r.cache != nil {
		clip, err := r.cache.Get(ctx, key)
		if err == nil {
			return clip, nil
		}
		if !errors.Is(err, segcache.ErrMiss) {
			r.logger.Warn("segment cache read failed", "path", c.Entry.Path, "error", err)
		}
	}

	loader, ok := r.loaders[c.Entry.Kind]
	if !ok {
		return nil, fmt.Errorf("dataset: no loader for %s source %s", c.Entry.Kind, c.Entry.Path)
	}
	clip, err := loader.Load(ctx, r.fs, c.Entry.Path, offset, length, r.rate)
	if err != nil {
		return nil, err
	}
	if clip.Len() < length {
		r.logger.Debug("padding short segment", "path", c.Entry.Path, "have", clip.Len(), "want", length)
	}
	clip.PadTo(length)

	for i, ch := range clip.Channels {
		filtered, err := r.hp.Apply(ch)
		if err != nil {
			return nil, fmt.Errorf("dataset: filter %s: %w", c.Entry.Path, err)
		}
		clip.Channels[i] = filtered
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, key, clip); err != nil {
			r.logger.Warn("segment cache write failed", "path", c.Entry.Path, "error", err)
		}
	}
	return clip, nil
}
