package dataset

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/vibvoice/vibsynth/pkg/config"
	"github.com/vibvoice/vibsynth/pkg/segcache"
)

func TestAudioDecodeLoaderDownmix(t *testing.T) {
	dir := t.TempDir()
	data := make([]int, 0, 200)
	for i := range 100 {
		data = append(data, i*10, i*10+20)
	}
	writeWAV(t, dir, "stereo.wav", 16000, 2, data)
	fs := newLocal(t, dir)

	clip, err := AudioDecodeLoader{}.Load(context.Background(), fs, "stereo.wav", 10, 5, 16000)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if clip.NumChannels() != 1 || clip.Len() != 5 || clip.Rate != 16000 {
		t.Fatalf("clip = %d channels, %d samples at %d Hz", clip.NumChannels(), clip.Len(), clip.Rate)
	}
	for k, got := range clip.Channels[0] {
		want := float64((10+k)*10+10) / 32768
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("sample %d = %v, want %v", k, got, want)
		}
	}

	short, err := AudioDecodeLoader{}.Load(context.Background(), fs, "stereo.wav", 90, 20, 16000)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if short.Len() != 10 {
		t.Errorf("short Len = %d, want 10", short.Len())
	}
}

func TestAudioDecodeLoaderResamples(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, dir, "low.wav", 8000, 1, pcm(tone(300, 0.5, 8000, 800)))
	fs := newLocal(t, dir)

	clip, err := AudioDecodeLoader{}.Load(context.Background(), fs, "low.wav", 0, 1600, 16000)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if clip.Len() != 1600 || clip.Rate != 16000 {
		t.Errorf("clip = %d samples at %d Hz, want 1600 at 16000", clip.Len(), clip.Rate)
	}
}

func TestAudioDecodeLoaderInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.wav"), []byte("definitely not riff"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := newLocal(t, dir)
	if _, err := (AudioDecodeLoader{}).Load(context.Background(), fs, "bad.wav", 0, 10, 16000); err == nil {
		t.Error("Load(bad.wav) succeeded")
	}
	if _, err := (AudioDecodeLoader{}).Load(context.Background(), fs, "missing.wav", 0, 10, 16000); err == nil {
		t.Error("Load(missing.wav) succeeded")
	}
}

func TestTextSensorLoader(t *testing.T) {
	dir := t.TempDir()
	body := "2 4 6 100\n\n8 10 12 101\n14 16 18 102\n20 22 24 103\n"
	if err := os.WriteFile(filepath.Join(dir, "imu.txt"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := newLocal(t, dir)

	clip, err := TextSensorLoader{Scale: 2}.Load(context.Background(), fs, "imu.txt", 1, 2, 1600)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := [][]float64{{4, 7}, {5, 8}, {6, 9}}
	if clip.NumChannels() != 3 {
		t.Fatalf("channels = %d, want 3", clip.NumChannels())
	}
	for c := range want {
		for i := range want[c] {
			if clip.Channels[c][i] != want[c][i] {
				t.Errorf("channel %d sample %d = %v, want %v", c, i, clip.Channels[c][i], want[c][i])
			}
		}
	}

	tail, err := TextSensorLoader{Scale: 1}.Load(context.Background(), fs, "imu.txt", 3, 10, 1600)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tail.Len() != 1 || tail.NumChannels() != 3 {
		t.Errorf("tail = %d channels, %d samples", tail.NumChannels(), tail.Len())
	}

	if err := os.WriteFile(filepath.Join(dir, "narrow.txt"), []byte("1 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (TextSensorLoader{Scale: 1}).Load(context.Background(), fs, "narrow.txt", 0, 1, 1600); err == nil {
		t.Error("Load(narrow.txt) succeeded")
	}
}

func TestReaderHighpassAndPad(t *testing.T) {
	dir := t.TempDir()
	x := tone(1000, 0.25, 16000, 32000)
	for i := range x {
		x[i] += 0.125
	}
	writeWAV(t, dir, "dc.wav", 16000, 1, pcm(x))
	fs := newLocal(t, dir)

	r, err := NewReader(fs, config.Default(), 16000, ReaderOptions{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	entry := Entry{Path: "dc.wav", Samples: 32000, Kind: SourceAudio}
	clip, err := r.Read(context.Background(), Coordinate{Entry: entry, Offset: 0.5, Duration: 1})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if clip.Len() != 16000 {
		t.Fatalf("Len = %d, want 16000", clip.Len())
	}
	mean := 0.0
	for _, v := range clip.Channels[0] {
		mean += v
	}
	mean /= float64(clip.Len())
	if math.Abs(mean) > 0.01 {
		t.Errorf("mean after high-pass = %v, want ~0", mean)
	}

	// Whole-file reads past the end are zero-padded.
	entry.Samples = 40000
	whole, err := r.Read(context.Background(), Coordinate{Entry: entry})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if whole.Len() != 40000 {
		t.Errorf("whole Len = %d, want 40000", whole.Len())
	}
}

func TestReaderSensorStream(t *testing.T) {
	dir := t.TempDir()
	writeSensorLog(t, dir, "imu.txt", 2000)
	r, err := NewReader(newLocal(t, dir), config.Default(), 1600, ReaderOptions{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	clip, err := r.Read(context.Background(), Coordinate{Entry: Entry{Path: "imu.txt", Samples: 2000, Kind: SourceText}, Duration: 1})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if clip.NumChannels() != 3 || clip.Len() != 1600 {
		t.Errorf("clip = %d channels, %d samples", clip.NumChannels(), clip.Len())
	}
}

func TestReaderCache(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, dir, "s.wav", 16000, 1, pcm(tone(440, 0.5, 16000, 8000)))
	cache, err := segcache.NewMemory(0)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	defer cache.Close()
	r, err := NewReader(newLocal(t, dir), config.Default(), 16000, ReaderOptions{Cache: cache})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	c := Coordinate{Entry: Entry{Path: "s.wav", Samples: 8000, Kind: SourceAudio}}

	first, err := r.Read(context.Background(), c)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("cache Len = %d, want 1", cache.Len())
	}
	if err := os.Remove(filepath.Join(dir, "s.wav")); err != nil {
		t.Fatal(err)
	}
	second, err := r.Read(context.Background(), c)
	if err != nil {
		t.Fatalf("cached Read: %v", err)
	}
	for i := range first.Channels[0] {
		if first.Channels[0][i] != second.Channels[0][i] {
			t.Fatalf("sample %d: %v != %v", i, first.Channels[0][i], second.Channels[0][i])
		}
	}
}

func TestReaderErrors(t *testing.T) {
	r, err := NewReader(newLocal(t, t.TempDir()), config.Default(), 16000, ReaderOptions{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := r.Read(context.Background(), Coordinate{Entry: Entry{Path: "x", Samples: 100, Kind: SourceKind(7)}}); err == nil {
		t.Error("Read with unknown kind succeeded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Read(ctx, Coordinate{Entry: Entry{Path: "x", Samples: 100}}); !errors.Is(err, context.Canceled) {
		t.Errorf("Read(cancelled) error = %v, want context.Canceled", err)
	}

	bad := config.Default()
	bad.HighpassHz = 9000
	if _, err := NewReader(newLocal(t, t.TempDir()), bad, 16000, ReaderOptions{}); err == nil {
		t.Error("NewReader with cutoff above Nyquist succeeded")
	}
}
