// Command vibsynth builds VibVoice training data: it indexes recording
// manifests, prepares the transfer-function population and exports
// synthesized (IMU, noisy, clean) examples.
//
// Usage:
//
//	vibsynth [--config pipeline.yaml] [-v] <command> [flags]
//
// Commands:
//
//	index     - Count the examples a manifest yields
//	transfer  - Load and resample the transfer-function corpus
//	export    - Synthesize examples and write them as msgpack records
//	version   - Show version information
//
// The pipeline config defaults to ~/.vibsynth/config.yaml when present.
package main

import (
	"os"

	"github.com/vibvoice/vibsynth/cmd/vibsynth/commands"
	"github.com/vibvoice/vibsynth/pkg/cli"
)

func main() {
	if err := commands.Execute(); err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
