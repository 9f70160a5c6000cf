package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/NextAI-Inc/nextevi-go/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

Contexts allow you to manage multiple API configurations,
similar to kubectl's context management.

Configuration is stored in ~/.nextevi/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

Example:
  nextevi config add-context myctx --config-id voice-1 --api-key YOUR_KEY --project-id YOUR_PROJECT
  nextevi config add-context staging --config-id voice-1 --token BEARER_TOKEN --base-url wss://staging.nextevi.com/v1/voice`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		configID, err := cmd.Flags().GetString("config-id")
		if err != nil {
			return fmt.Errorf("failed to read 'config-id' flag: %w", err)
		}
		if configID == "" {
			return fmt.Errorf("--config-id is required")
		}

		apiKey, err := cmd.Flags().GetString("api-key")
		if err != nil {
			return fmt.Errorf("failed to read 'api-key' flag: %w", err)
		}
		projectID, err := cmd.Flags().GetString("project-id")
		if err != nil {
			return fmt.Errorf("failed to read 'project-id' flag: %w", err)
		}
		token, err := cmd.Flags().GetString("token")
		if err != nil {
			return fmt.Errorf("failed to read 'token' flag: %w", err)
		}
		if token == "" && apiKey == "" {
			return fmt.Errorf("either --token or --api-key/--project-id is required")
		}
		if token == "" && projectID == "" {
			return fmt.Errorf("--project-id is required with --api-key")
		}

		baseURL, err := cmd.Flags().GetString("base-url")
		if err != nil {
			return fmt.Errorf("failed to read 'base-url' flag: %w", err)
		}
		sampleRate, err := cmd.Flags().GetInt("sample-rate")
		if err != nil {
			return fmt.Errorf("failed to read 'sample-rate' flag: %w", err)
		}

		ctx := &cli.Context{
			ConfigID:   configID,
			APIKey:     apiKey,
			ProjectID:  projectID,
			Token:      token,
			BaseURL:    baseURL,
			SampleRate: sampleRate,
		}

		cfg := getConfig()
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.UseContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Switched to context %q", name)
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context [name]",
	Short: "Display a context",
	Long: `Display the named context, or the current context when no name is given.

Secrets are masked in the output.

Example:
  nextevi config get-context
  nextevi config get-context staging --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		name := ""
		if len(args) == 1 {
			name = args[0]
		} else if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}
		ctx, err := cfg.ResolveContext(name)
		if err != nil {
			return err
		}

		format, err := cmd.Flags().GetString("output")
		if err != nil {
			return fmt.Errorf("failed to read 'output' flag: %w", err)
		}

		masked := *ctx
		masked.APIKey = cli.MaskAPIKey(masked.APIKey)
		masked.Token = cli.MaskAPIKey(masked.Token)
		return cli.Output(masked, cli.OutputOptions{Format: cli.OutputFormat(format)})
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if len(cfg.Contexts) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tCONFIG_ID\tAUTH\tBASE_URL")

		for name, ctx := range cfg.Contexts {
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			auth := "api-key"
			if ctx.Token != "" {
				auth = "token"
			}
			baseURL := ctx.BaseURL
			if baseURL == "" {
				baseURL = "(default)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", current, name, ctx.ConfigID, auth, baseURL)
		}

		w.Flush()
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		fmt.Printf("Config file: %s\n", cfg.Path())
		fmt.Printf("Current context: %s\n", cfg.CurrentContext)
		fmt.Printf("Contexts: %d\n", len(cfg.Contexts))

		if len(cfg.Contexts) > 0 {
			fmt.Println("\nContext details:")
			for name, ctx := range cfg.Contexts {
				fmt.Printf("\n  %s:\n", name)
				fmt.Printf("    Config ID: %s\n", ctx.ConfigID)
				if ctx.APIKey != "" {
					fmt.Printf("    API Key: %s\n", cli.MaskAPIKey(ctx.APIKey))
					fmt.Printf("    Project ID: %s\n", ctx.ProjectID)
				}
				if ctx.Token != "" {
					fmt.Printf("    Token: %s\n", cli.MaskAPIKey(ctx.Token))
				}
				if ctx.BaseURL != "" {
					fmt.Printf("    Base URL: %s\n", ctx.BaseURL)
				}
				if ctx.SampleRate > 0 {
					fmt.Printf("    Sample Rate: %d Hz\n", ctx.SampleRate)
				}
			}
		}

		return nil
	},
}

func init() {
	// add-context flags
	configAddContextCmd.Flags().String("config-id", "", "Voice configuration ID (required)")
	configAddContextCmd.Flags().String("api-key", "", "API key")
	configAddContextCmd.Flags().String("project-id", "", "Project ID (required with --api-key)")
	configAddContextCmd.Flags().String("token", "", "Bearer token (alternative to --api-key)")
	configAddContextCmd.Flags().String("base-url", "", "WebSocket endpoint URL")
	configAddContextCmd.Flags().Int("sample-rate", 0, "Capture sample rate in Hz")

	// get-context flags
	configGetContextCmd.Flags().StringP("output", "o", "yaml", "Output format (yaml, json)")

	// Add subcommands
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
