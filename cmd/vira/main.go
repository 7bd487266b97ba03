// Command vira runs the Vira assistant as a terminal chat or an HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/core"
)

var (
	// Global flags
	configPath string
	envFile    string
	verbose    bool

	logger *zap.Logger
	config *core.Config
)

var rootCmd = &cobra.Command{
	Use:   "vira",
	Short: "Vira - conversational assistant with long-term memory",
	Long: `Vira answers through a workflow of input analysis, intent classification,
memory retrieval, prompt assembly, generation, importance scoring and memory
persistence.

Configuration comes from a JSON file (--config) or from the environment and
an optional .env file.

Run without arguments to start the terminal chat.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		switch {
		case configPath != "":
			config, err = core.LoadConfigFromJSON(configPath)
		case envFile != "":
			config, err = core.LoadConfigFromEnvFile(envFile)
		default:
			config, err = core.LoadConfigFromEnv()
		}
		if err != nil {
			return err
		}
		if verbose {
			config.Log.Level = "debug"
		}

		logger, err = core.NewLogger(config.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", ".env file to load instead of searching for one")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
