package commands

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vibvoice/vibsynth/pkg/cli"
	"github.com/vibvoice/vibsynth/pkg/dataset"
	"github.com/vibvoice/vibsynth/pkg/storage"
)

// exportJob describes one export run. It can be loaded from a YAML or JSON
// file with --job; flags given on the command line take precedence.
type exportJob struct {
	Speech     string   `json:"speech" yaml:"speech"`
	Noise      string   `json:"noise" yaml:"noise"`
	IMU        string   `json:"imu,omitempty" yaml:"imu,omitempty"`
	Persons    []string `json:"persons,omitempty" yaml:"persons,omitempty"`
	PathLabels bool     `json:"path_labels,omitempty" yaml:"path_labels,omitempty"`
	Simulation bool     `json:"simulation,omitempty" yaml:"simulation,omitempty"`
	Text       bool     `json:"text,omitempty" yaml:"text,omitempty"`
	Ratio      float64  `json:"ratio,omitempty" yaml:"ratio,omitempty"`
	Count      int      `json:"count,omitempty" yaml:"count,omitempty"`
	Workers    int      `json:"workers,omitempty" yaml:"workers,omitempty"`
	Seed       uint64   `json:"seed,omitempty" yaml:"seed,omitempty"`
	Timeout    string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Dest       string   `json:"dest,omitempty" yaml:"dest,omitempty"`
}

type exportReport struct {
	RunID     string `json:"run_id" yaml:"run_id"`
	Dest      string `json:"dest" yaml:"dest"`
	Examples  int    `json:"examples" yaml:"examples"`
	Augmented bool   `json:"augmented" yaml:"augmented"`
	Bytes     string `json:"bytes" yaml:"bytes"`
	Elapsed   string `json:"elapsed" yaml:"elapsed"`
}

var (
	exportFlags   = exportJob{Seed: 1, Dest: "export"}
	exportJobFile string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Synthesize examples and write them as msgpack records",
	Long: `Assemble (IMU, noisy, clean) examples on a worker pool and write each
one as <dest>/<run-id>/<index>.msgpack in the storage backend.

Without --imu the IMU spectrogram is synthesized from clean speech using the
transfer-function and noise corpora named in the pipeline config. With
--simulation the noise manifest lists noise clips that are mixed at a random
SNR; otherwise it lists noisy recordings paired with the speech manifest.

Examples:
  vibsynth export --speech speech.json --noise noise.json --simulation -n 100
  vibsynth export --speech clean.json --noise noisy.json --imu imu.json --text
  vibsynth export --job export.yaml --workers 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		job := exportFlags
		if exportJobFile != "" {
			job = exportJob{Seed: exportFlags.Seed, Dest: exportFlags.Dest}
			if err := cli.LoadFile(exportJobFile, &job); err != nil {
				return err
			}
			overlayFlags(cmd.Flags(), &job)
		}
		return runExport(context.Background(), job)
	},
}

// overlayFlags copies explicitly set flags over a job loaded from a file.
func overlayFlags(flags *pflag.FlagSet, job *exportJob) {
	flags.VisitAll(func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		switch f.Name {
		case "speech":
			job.Speech = exportFlags.Speech
		case "noise":
			job.Noise = exportFlags.Noise
		case "imu":
			job.IMU = exportFlags.IMU
		case "person":
			job.Persons = exportFlags.Persons
		case "path-labels":
			job.PathLabels = exportFlags.PathLabels
		case "simulation":
			job.Simulation = exportFlags.Simulation
		case "text":
			job.Text = exportFlags.Text
		case "ratio":
			job.Ratio = exportFlags.Ratio
		case "count":
			job.Count = exportFlags.Count
		case "workers":
			job.Workers = exportFlags.Workers
		case "seed":
			job.Seed = exportFlags.Seed
		case "timeout":
			job.Timeout = exportFlags.Timeout
		case "dest":
			job.Dest = exportFlags.Dest
		}
	})
}

func runExport(ctx context.Context, job exportJob) error {
	if job.Speech == "" || job.Noise == "" {
		return fmt.Errorf("--speech and --noise are required")
	}
	var timeout time.Duration
	if job.Timeout != "" {
		d, err := time.ParseDuration(job.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		timeout = d
	}
	if err := pipeline.Validate(); err != nil {
		return err
	}

	fs, err := openStore()
	if err != nil {
		return err
	}
	cache, err := openCache()
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	mopts := dataset.ManifestOptions{Persons: job.Persons, PathLabels: job.PathLabels}
	var streams dataset.Streams
	if streams.Speech, err = dataset.LoadManifest(ctx, fs, job.Speech, mopts); err != nil {
		return err
	}
	if streams.Noise, err = dataset.LoadManifest(ctx, fs, job.Noise, mopts); err != nil {
		return err
	}
	deps := dataset.Deps{FS: fs, Cache: cache, Logger: slog.Default()}
	if job.IMU != "" {
		if streams.IMU, err = dataset.LoadManifest(ctx, fs, job.IMU, mopts); err != nil {
			return err
		}
	} else if deps.Generator, err = loadGenerator(ctx, fs); err != nil {
		return err
	}

	set, err := dataset.NewNoisyCleanSet(pipeline, streams, dataset.Options{
		Simulation: job.Simulation,
		Text:       job.Text,
		Ratio:      job.Ratio,
	}, deps)
	if err != nil {
		return err
	}

	n := set.Len()
	if job.Count > 0 && job.Count < n {
		n = job.Count
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	runID := uuid.NewString()
	dest := path.Join(job.Dest, runID)
	slog.Info("export started", "run_id", runID, "dest", dest, "examples", n, "workers", job.Workers)

	start := time.Now()
	var written atomic.Int64
	err = dataset.Produce(ctx, set, indices, dataset.ProduceOptions{
		Workers: job.Workers,
		Seed:    job.Seed,
		Timeout: timeout,
		Logger:  slog.Default(),
	}, func(i int, t *dataset.Tuple) error {
		size, err := writeExample(ctx, fs, path.Join(dest, fmt.Sprintf("%06d.msgpack", i)), i, t)
		written.Add(size)
		return err
	})
	if err != nil {
		return err
	}

	cli.PrintSuccess("exported %d examples to %s", n, dest)
	return outputResult(exportReport{
		RunID:     runID,
		Dest:      dest,
		Examples:  n,
		Augmented: set.Augmented(),
		Bytes:     cli.FormatBytes(written.Load()),
		Elapsed:   cli.FormatDuration(time.Since(start)),
	})
}

// writeExample encodes the record before opening the destination so a
// failed encode or write never publishes a partial record.
func writeExample(ctx context.Context, fs storage.FileStore, name string, i int, t *dataset.Tuple) (int64, error) {
	var buf bytes.Buffer
	if err := dataset.WriteRecord(&buf, i, t); err != nil {
		return 0, fmt.Errorf("encode %s: %w", name, err)
	}
	if err := storage.WriteFile(ctx, fs, name, buf.Bytes()); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportJobFile, "job", "", "export job file (YAML or JSON)")
	f.StringVar(&exportFlags.Speech, "speech", "", "clean speech manifest")
	f.StringVar(&exportFlags.Noise, "noise", "", "noise or paired noisy manifest")
	f.StringVar(&exportFlags.IMU, "imu", "", "real IMU manifest (default: synthesize)")
	f.StringSliceVar(&exportFlags.Persons, "person", nil, "person keys to include, in order (repeatable)")
	f.BoolVar(&exportFlags.PathLabels, "path-labels", false, "derive sentence labels from the third path component")
	f.BoolVar(&exportFlags.Simulation, "simulation", false, "mix random noise at a random SNR")
	f.BoolVar(&exportFlags.Text, "text", false, "attach sentence labels")
	f.Float64Var(&exportFlags.Ratio, "ratio", 1, "scale the number of examples")
	f.IntVarP(&exportFlags.Count, "count", "n", 0, "maximum number of examples (0 for all)")
	f.IntVar(&exportFlags.Workers, "workers", 0, "worker goroutines (default GOMAXPROCS)")
	f.Uint64Var(&exportFlags.Seed, "seed", 1, "random seed")
	f.StringVar(&exportFlags.Timeout, "timeout", "", "per-example time limit, e.g. 30s")
	f.StringVar(&exportFlags.Dest, "dest", "export", "output directory in the storage backend")
	rootCmd.AddCommand(exportCmd)
}
