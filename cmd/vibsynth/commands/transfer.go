package commands

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vibvoice/vibsynth/pkg/cli"
	"github.com/vibvoice/vibsynth/pkg/storage"
	"github.com/vibvoice/vibsynth/pkg/transfer"
)

var (
	transferDir string
	transferOut string
)

type transferReport struct {
	Dir   string              `json:"dir" yaml:"dir"`
	Size  int                 `json:"size" yaml:"size"`
	Bins  int                 `json:"bins" yaml:"bins"`
	Out   string              `json:"out,omitempty" yaml:"out,omitempty"`
	Stats []transfer.BinStats `json:"stats" yaml:"stats"`
}

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Load and resample the transfer-function corpus",
	Long: `Load every transfer-function record, resample the population to the
configured size and print per-bin min, median and max of the response.

With --out the resampled population is written to the storage backend as an
npz archive holding "response" and "variance" arrays.

Examples:
  vibsynth transfer
  vibsynth transfer --dir tf/2024 --out population.npz --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		fs, err := openStore()
		if err != nil {
			return err
		}
		dir := transferDir
		if dir == "" {
			dir = pipeline.TransferDir
		}
		pop, err := transfer.Load(ctx, fs, dir, transfer.LoadOptions{
			Size:   pipeline.Population,
			Bins:   pipeline.FreqBinHigh(),
			Logger: slog.Default(),
		})
		if err != nil {
			return err
		}

		if transferOut != "" {
			var buf bytes.Buffer
			if err := transfer.WriteNPZ(&buf, pop); err != nil {
				return err
			}
			if err := storage.WriteFile(ctx, fs, transferOut, buf.Bytes()); err != nil {
				return err
			}
			cli.PrintSuccess("population written to %s", transferOut)
		}

		return outputResult(transferReport{
			Dir:   dir,
			Size:  pop.Len(),
			Bins:  pop.Bins(),
			Out:   transferOut,
			Stats: pop.Summary(),
		})
	},
}

func init() {
	transferCmd.Flags().StringVar(&transferDir, "dir", "", "corpus directory (default from config)")
	transferCmd.Flags().StringVar(&transferOut, "out", "", "write the resampled population as npz")
	rootCmd.AddCommand(transferCmd)
}
