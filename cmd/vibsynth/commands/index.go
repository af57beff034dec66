package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibvoice/vibsynth/pkg/dataset"
)

var (
	indexManifest   string
	indexPersons    []string
	indexPathLabels bool
	indexRate       int
)

type indexFile struct {
	Path     string `json:"path" yaml:"path"`
	Samples  int    `json:"samples" yaml:"samples"`
	Examples int    `json:"examples" yaml:"examples"`
	Label    *int   `json:"label,omitempty" yaml:"label,omitempty"`
}

type indexReport struct {
	Manifest string      `json:"manifest" yaml:"manifest"`
	Rate     int         `json:"rate" yaml:"rate"`
	Segment  float64     `json:"segment" yaml:"segment"`
	Stride   float64     `json:"stride" yaml:"stride"`
	Pad      bool        `json:"pad" yaml:"pad"`
	Files    []indexFile `json:"files" yaml:"files"`
	Total    int         `json:"total" yaml:"total"`
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Count the examples a manifest yields",
	Long: `Index a manifest with the configured segment window and print the
number of examples contributed by each file.

Sensor logs (.txt) are indexed at the IMU rate and audio at the microphone
rate unless --rate is given.

Examples:
  vibsynth index -m speech.json
  vibsynth index -m speech.json --person amy --path-labels --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if indexManifest == "" {
			return fmt.Errorf("--manifest is required")
		}
		fs, err := openStore()
		if err != nil {
			return err
		}
		entries, err := dataset.LoadManifest(context.Background(), fs, indexManifest, dataset.ManifestOptions{
			Persons:    indexPersons,
			PathLabels: indexPathLabels,
		})
		if err != nil {
			return err
		}
		rate := indexRate
		if rate <= 0 {
			rate = streamRate(entries)
		}
		w := dataset.WindowOf(pipeline)
		ix := dataset.NewIndex(entries, w, rate)

		report := indexReport{
			Manifest: indexManifest,
			Rate:     rate,
			Segment:  w.Segment,
			Stride:   w.Stride,
			Pad:      w.Pad,
			Total:    ix.Len(),
		}
		for i, n := range ix.Counts() {
			e := entries[i]
			report.Files = append(report.Files, indexFile{Path: e.Path, Samples: e.Samples, Examples: n, Label: e.LabelIndex})
		}
		return outputResult(report)
	},
}

func init() {
	indexCmd.Flags().StringVarP(&indexManifest, "manifest", "m", "", "manifest path in the storage backend")
	indexCmd.Flags().StringSliceVar(&indexPersons, "person", nil, "person keys to include, in order (repeatable)")
	indexCmd.Flags().BoolVar(&indexPathLabels, "path-labels", false, "derive sentence labels from the third path component")
	indexCmd.Flags().IntVar(&indexRate, "rate", 0, "sample rate of the manifest (default by file kind)")
	rootCmd.AddCommand(indexCmd)
}
