package dataset

import (
	"errors"
	"fmt"
)

// ErrNoLabel is returned when a labelled example has no usable sentence.
var ErrNoLabel = errors.New("dataset: no label")

// Sentences is the transcript table of the read-speech recordings, indexed
// by Entry.LabelIndex.
var Sentences = [][]string{
	{"HAPPY", "NEW", "YEAR", "PROFESSOR", "AUSTIN", "NICE", "TO", "MEET", "YOU"},
	{"WE", "WANT", "TO", "IMPROVE", "SPEECH", "QUALITY", "IN", "THIS", "PROJECT"},
	{"BUT", "WE", "DON'T", "HAVE", "ENOUGH", "DATA", "TO", "TRAIN", "OUR", "MODEL"},
	{"TRANSFER", "FUNCTION", "CAN", "BE", "A", "GOOD", "HELPER", "TO", "GENERATE", "DATA"},
}

// Label returns a copy of the sentence for e.
func Label(e Entry) ([]string, error) {
	if e.LabelIndex == nil {
		return nil, fmt.Errorf("%w: %s has no label index", ErrNoLabel, e.Path)
	}
	i := *e.LabelIndex
	if i < 0 || i >= len(Sentences) {
		return nil, fmt.Errorf("%w: %s label index %d not in [0, %d)", ErrNoLabel, e.Path, i, len(Sentences))
	}
	return append([]string(nil), Sentences[i]...), nil
}
