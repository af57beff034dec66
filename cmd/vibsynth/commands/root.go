package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vibvoice/vibsynth/pkg/cli"
	"github.com/vibvoice/vibsynth/pkg/config"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	formatOutput string
	outputFile   string

	// pipeline is loaded before any subcommand runs.
	pipeline config.Pipeline
)

var rootCmd = &cobra.Command{
	Use:   "vibsynth",
	Short: "VibVoice synthetic training data pipeline",
	Long: `vibsynth - synthesize accelerometer/microphone training data.

Recordings are listed in JSON manifests of [path, samples] rows and read
through the configured storage backend (local directory or S3). When no IMU
manifest is given the sensor spectrogram is synthesized from clean speech
with a resampled transfer-function population and a noise bank.

Examples:
  # Count the examples a manifest yields
  vibsynth index -m speech.json --person amy --person bob

  # Resample the transfer-function corpus and save it
  vibsynth transfer --out population.npz

  # Export 100 simulated examples
  vibsynth export --speech speech.json --noise noise.json --simulation -n 100`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "pipeline config file (default is ~/.vibsynth/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&formatOutput, "format", "yaml", "output format: yaml, json or raw")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
}

func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if _, err := cli.ParseFormat(formatOutput); err != nil {
		return err
	}

	path := cfgFile
	if path == "" {
		if paths, err := cli.NewPaths(); err == nil {
			if path, err = paths.DefaultConfig(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	pipeline = cfg
	if path != "" {
		slog.Debug("pipeline config loaded", "path", path)
	}
	return nil
}

// outputResult writes result in the selected format.
func outputResult(result any) error {
	format, err := cli.ParseFormat(formatOutput)
	if err != nil {
		return err
	}
	return cli.Output(result, cli.OutputOptions{Format: format, File: outputFile})
}
