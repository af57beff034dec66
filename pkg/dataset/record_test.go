package dataset

import (
	"bytes"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/vibvoice/vibsynth/pkg/audio/dsp"
)

func TestRecordRoundTrip(t *testing.T) {
	tup := &Tuple{
		IMU:   mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
		Noisy: dsp.Spectrogram{Bins: 2, Frames: 1, Data: []complex128{1 + 2i, 3 - 4i}},
		Clean: dsp.Spectrogram{Bins: 2, Frames: 1, Data: []complex128{5, 6i}},
		Label: []string{"HELLO"},
	}
	var buf bytes.Buffer
	if err := WriteRecord(&buf, 7, tup); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	rec, err := ReadRecord(&buf)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if rec.Index != 7 || rec.IMU.Rows != 2 || rec.IMU.Cols != 3 || rec.IMU.Data[5] != 6 {
		t.Errorf("IMU = %+v", rec.IMU)
	}
	if rec.Noisy.Real[1] != 3 || rec.Noisy.Imag[1] != -4 || rec.Clean.Imag[1] != 6 {
		t.Errorf("Noisy = %+v, Clean = %+v", rec.Noisy, rec.Clean)
	}
	if len(rec.Label) != 1 || rec.Label[0] != "HELLO" {
		t.Errorf("Label = %v", rec.Label)
	}
}

func TestReadRecordShapeMismatch(t *testing.T) {
	var buf bytes.Buffer
	tup := &Tuple{IMU: mat.NewDense(1, 1, []float64{1})}
	if err := WriteRecord(&buf, 0, tup); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	data := buf.Bytes()
	rec, err := ReadRecord(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	rec.IMU.Rows = 4
	bad, err := msgpack.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ReadRecord(bytes.NewReader(bad)); err == nil {
		t.Error("ReadRecord accepted a short data slice")
	}
}
