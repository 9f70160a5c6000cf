// Package cli provides common utilities for the nextevi command-line tool.
//
// This package includes:
//   - Configuration management (contexts)
//   - Output formatting (JSON, YAML, raw)
//   - Request file loading (YAML/JSON)
//   - Transcript rendering for live voice sessions
//
// Configuration is stored in the ~/.nextevi/ directory, supporting
// multiple contexts similar to kubectl.
//
// Example usage:
//
//	// Load the CLI config
//	cfg, err := cli.LoadConfig()
//
//	// Get current context
//	ctx, err := cfg.GetCurrentContext()
//
//	// Output result
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
package cli
