package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/NextAI-Inc/nextevi-go/cmd/nextevi/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(build.String())
		if verbose {
			fmt.Printf("  go:     %s\n", runtime.Version())
			if cfg := getConfig(); cfg != nil {
				fmt.Printf("  config: %s\n", cfg.Path())
			}
		}
	},
}
