package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/NextAI-Inc/nextevi-go/pkg/cli"
)

var (
	// Global flags
	cfgFile     string
	contextName string
	verbose     bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nextevi",
	Short: "NextEVI voice API CLI tool",
	Long: `nextevi - A command line interface for the NextEVI voice API.

This tool opens full-duplex voice sessions against the NextEVI
backend: audio streams up, transcription, assistant replies and
synthesized speech stream back, and the live transcript is printed
to the terminal.

Configuration is stored in ~/.nextevi/ and supports multiple
contexts, similar to kubectl's context management.

Examples:
  # Set up a new context
  nextevi config add-context myctx --config-id voice-1 --api-key YOUR_KEY --project-id YOUR_PROJECT

  # Open a session, feeding audio from a raw PCM16 file
  nextevi -c myctx connect --audio sample.pcm

  # Monitor a session and save the synthesized speech
  nextevi -c myctx connect --save-audio
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.nextevi/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	var err error
	globalConfig, err = cli.LoadConfigWithPath(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the context configuration to use
func getContext() (*cli.Context, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'nextevi config use-context'")
		}
		return nil, err
	}

	return ctx, nil
}

// newLogger builds the slog logger honoring the verbose flag
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
