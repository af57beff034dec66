package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/vibvoice/vibsynth/pkg/storage"
)

// writeWAV writes interleaved 16-bit PCM to dir/name.
func writeWAV(t *testing.T, dir, name string, rate, chans int, data []int) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, rate, 16, chans, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: chans, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("wav Write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("wav Close: %v", err)
	}
}

// pcm converts samples in [-1, 1] to 16-bit integers.
func pcm(x []float64) []int {
	out := make([]int, len(x))
	for i, v := range x {
		out[i] = int(math.Round(v * 32767))
	}
	return out
}

func tone(freq, amp float64, rate, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return x
}

func hiss(rng *rand.Rand, amp float64, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * (2*rng.Float64() - 1)
	}
	return x
}

// writeSensorLog writes rows of three axes and a timestamp column.
func writeSensorLog(t *testing.T, dir, name string, rows int) {
	t.Helper()
	var sb strings.Builder
	for i := range rows {
		x := 1000 * math.Sin(2*math.Pi*200*float64(i)/1600)
		fmt.Fprintf(&sb, "%d %d %d %d\n", int(x), int(x/2), -int(x), 1700000000+i)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newLocal(t *testing.T, dir string) storage.FileStore {
	t.Helper()
	fs, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return fs
}
