package noise

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/vibvoice/vibsynth/pkg/storage"
)

// ramp returns a rows x cols clip where element (i, j) = 1000*i + j.
func ramp(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := range rows {
		for j := range cols {
			m.Set(i, j, float64(1000*i+j))
		}
	}
	return m
}

func TestSampleWindow(t *testing.T) {
	bank, err := NewBank([]*mat.Dense{ramp(40, 200)}, 33)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		w, err := bank.Sample(rng, 151)
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		r, c := w.Dims()
		if r != 33 || c != 151 {
			t.Fatalf("Sample dims = %dx%d, want 33x151", r, c)
		}
		start := int(w.At(0, 0))
		if start < 0 || start > 200-151 {
			t.Fatalf("start %d out of range", start)
		}
		// Contiguous and row-aligned.
		if w.At(32, 150) != float64(32000+start+150) {
			t.Fatalf("window not contiguous: %v", w.At(32, 150))
		}
	}
}

func TestSampleExactLength(t *testing.T) {
	bank, err := NewBank([]*mat.Dense{ramp(33, 151)}, 33)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	w, err := bank.Sample(rand.New(rand.NewPCG(3, 4)), 151)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if w.At(0, 0) != 0 {
		t.Errorf("start = %v, want 0", w.At(0, 0))
	}
}

func TestSampleSkipsShortClips(t *testing.T) {
	bank, err := NewBank([]*mat.Dense{ramp(33, 10), ramp(33, 160)}, 33)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	rng := rand.New(rand.NewPCG(5, 6))
	for range 20 {
		if _, err := bank.Sample(rng, 151); err != nil {
			t.Fatalf("Sample: %v", err)
		}
	}
	if _, err := bank.Sample(rng, 161); !errors.Is(err, ErrClipTooShort) {
		t.Fatalf("got %v, want ErrClipTooShort", err)
	}
}

func TestSampleDoesNotAlias(t *testing.T) {
	bank, err := NewBank([]*mat.Dense{ramp(33, 151)}, 33)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	rng := rand.New(rand.NewPCG(7, 8))
	w, _ := bank.Sample(rng, 151)
	w.Set(0, 0, -1)
	w2, _ := bank.Sample(rng, 151)
	if w2.At(0, 0) != 0 {
		t.Fatal("Sample returned a view into the bank")
	}
}

func TestNewBankErrors(t *testing.T) {
	if _, err := NewBank(nil, 33); !errors.Is(err, ErrCorpusEmpty) {
		t.Errorf("got %v, want ErrCorpusEmpty", err)
	}
	if _, err := NewBank([]*mat.Dense{ramp(32, 200)}, 33); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("got %v, want ErrShapeMismatch", err)
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	fs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	var npy bytes.Buffer
	if err := npyio.Write(&npy, ramp(321, 300)); err != nil {
		t.Fatalf("npyio.Write: %v", err)
	}
	mp, err := EncodeMsgpack(ramp(33, 151))
	if err != nil {
		t.Fatalf("EncodeMsgpack: %v", err)
	}
	for name, data := range map[string][]byte{
		"noise/a.npy":     npy.Bytes(),
		"noise/b.msgpack": mp,
		"noise/c.txt":     []byte("skip"),
	} {
		w, err := fs.Write(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(data)
		w.Close()
	}

	bank, err := Load(ctx, fs, "noise", LoadOptions{Bins: 33})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if bank.Len() != 2 || bank.Bins() != 33 {
		t.Fatalf("bank = %d clips x %d bins", bank.Len(), bank.Bins())
	}
}

func TestLoadEmpty(t *testing.T) {
	ctx := context.Background()
	fs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	w, _ := fs.Write(ctx, "noise/readme.md")
	w.Close()
	if _, err := Load(ctx, fs, "noise", LoadOptions{Bins: 33}); !errors.Is(err, ErrCorpusEmpty) {
		t.Fatalf("got %v, want ErrCorpusEmpty", err)
	}
}

func TestDecodeMsgpackShape(t *testing.T) {
	data, err := EncodeMsgpack(ramp(2, 3))
	if err != nil {
		t.Fatal(err)
	}
	m, err := DecodeMsgpack(data)
	if err != nil {
		t.Fatalf("DecodeMsgpack: %v", err)
	}
	if m.At(1, 2) != 1002 {
		t.Errorf("At(1,2) = %v, want 1002", m.At(1, 2))
	}
}
