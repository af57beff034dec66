// Package cli holds the terminal plumbing shared by the vibsynth commands:
// result formatting (YAML, JSON, raw), job files, the ~/.vibsynth directory
// layout and human-readable sizes and durations.
//
//	var job ExportJob
//	if err := cli.LoadFile("export.yaml", &job); err != nil { ... }
//	cli.Output(summary, cli.OutputOptions{Format: cli.FormatJSON})
package cli
