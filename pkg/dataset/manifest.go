// Package dataset turns recording manifests into synthesized training
// examples.
//
// A manifest lists (path, sample count) pairs. An [Index] cuts every file
// into fixed-length windows and maps a flat example number back to a file
// and time offset. A [Reader] loads and high-pass filters one window.
// [NoisyCleanSet] composes the speech, noise and sensor streams into
// [Tuple]s, and [Produce] fans example synthesis out over a worker pool.
package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/vibvoice/vibsynth/pkg/storage"
)

// ErrManifest is returned for manifests that do not have the expected shape.
var ErrManifest = errors.New("dataset: invalid manifest")

// SourceKind selects how a file is decoded.
type SourceKind int

const (
	// SourceAudio is a decodable audio file.
	SourceAudio SourceKind = iota
	// SourceText is a whitespace-separated sensor log.
	SourceText
)

func (k SourceKind) String() string {
	switch k {
	case SourceAudio:
		return "audio"
	case SourceText:
		return "text"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// KindOf returns the SourceKind for a file name.
func KindOf(p string) SourceKind {
	if strings.EqualFold(path.Ext(strings.ReplaceAll(p, `\`, "/")), ".txt") {
		return SourceText
	}
	return SourceAudio
}

// Entry is one manifest row.
type Entry struct {
	Path    string     `json:"path" yaml:"path"`
	Samples int        `json:"samples" yaml:"samples"`
	Kind    SourceKind `json:"kind" yaml:"kind"`

	// LabelIndex selects a sentence from the label table. Nil when the
	// recording has no transcript.
	LabelIndex *int `json:"label_index,omitempty" yaml:"label_index,omitempty"`
}

// ManifestOptions configures ReadManifest.
type ManifestOptions struct {
	// Persons selects and concatenates keys of a per-person manifest, in
	// order. Empty means every key, sorted.
	Persons []string

	// PathLabels derives LabelIndex from the last character of the third
	// path component, for manifests recorded before labels were stored
	// explicitly. Both '/' and '\' separate components.
	PathLabels bool
}

// ReadManifest parses a JSON manifest. The document is either a list of
// [path, samples] or [path, samples, label] rows, or an object mapping a
// person key to such a list.
func ReadManifest(r io.Reader, opts ManifestOptions) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("dataset: read manifest: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrManifest)
	}

	var rows []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrManifest, err)
		}
	case '{':
		var byPerson map[string][]json.RawMessage
		if err := json.Unmarshal(data, &byPerson); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrManifest, err)
		}
		persons := opts.Persons
		if len(persons) == 0 {
			for k := range byPerson {
				persons = append(persons, k)
			}
			sort.Strings(persons)
		}
		for _, p := range persons {
			list, ok := byPerson[p]
			if !ok {
				return nil, fmt.Errorf("%w: unknown person %q", ErrManifest, p)
			}
			rows = append(rows, list...)
		}
	default:
		return nil, fmt.Errorf("%w: expected list or object", ErrManifest)
	}

	entries := make([]Entry, 0, len(rows))
	for i, raw := range rows {
		e, err := parseRow(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrManifest, i, err)
		}
		if e.LabelIndex == nil && opts.PathLabels {
			if idx, ok := labelFromPath(e.Path); ok {
				e.LabelIndex = &idx
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseRow(raw json.RawMessage) (Entry, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Entry{}, err
	}
	if len(fields) < 2 || len(fields) > 3 {
		return Entry{}, fmt.Errorf("want 2 or 3 fields, got %d", len(fields))
	}
	var e Entry
	if err := json.Unmarshal(fields[0], &e.Path); err != nil {
		return Entry{}, fmt.Errorf("path: %v", err)
	}
	var samples float64
	if err := json.Unmarshal(fields[1], &samples); err != nil {
		return Entry{}, fmt.Errorf("samples: %v", err)
	}
	if samples < 0 {
		return Entry{}, fmt.Errorf("negative sample count %v", samples)
	}
	e.Samples = int(samples)
	e.Kind = KindOf(e.Path)
	if len(fields) == 3 {
		var label int
		if err := json.Unmarshal(fields[2], &label); err != nil {
			return Entry{}, fmt.Errorf("label: %v", err)
		}
		e.LabelIndex = &label
	}
	return e, nil
}

func labelFromPath(p string) (int, bool) {
	parts := strings.Split(strings.ReplaceAll(p, `\`, "/"), "/")
	if len(parts) < 3 || parts[2] == "" {
		return 0, false
	}
	c := parts[2][len(parts[2])-1]
	if c < '0' || c > '9' {
		return 0, false
	}
	return int(c - '0'), true
}

// LoadManifest reads and parses a manifest from fs.
func LoadManifest(ctx context.Context, fs storage.FileStore, name string, opts ManifestOptions) ([]Entry, error) {
	r, err := fs.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("dataset: open manifest %s: %w", name, err)
	}
	defer r.Close()
	entries, err := ReadManifest(r, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return entries, nil
}
