// Package main provides the nextevi CLI tool.
//
// Usage:
//
//	nextevi [flags] <command> [args]
//
// Commands:
//
//	connect  - Open a live voice session and print the transcript
//	config   - Configuration management
//	version  - Print version information
//
// Configuration:
//
//	The CLI stores configuration in ~/.nextevi/
//	Use 'nextevi config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/NextAI-Inc/nextevi-go/cmd/nextevi/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
