/*
Package cli provides the emailctl commands. They run the same handlers as the
deployed functions, in-process.
*/
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/devonik/email-api/internal/app"
	"github.com/devonik/email-api/internal/config"
	"github.com/devonik/email-api/internal/handler"
)

var (
	cfgFile string
	verbose bool
	debug   bool
	dryRun  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "emailctl",
	Short: "Send, schedule and validate email API requests",
	Long: `emailctl runs email API requests against the configured provider
without going through API Gateway.

Request files use the same JSON body as POST /email. Use - to read stdin.

Example:
  emailctl validate request.json        # Check a request without sending
  emailctl send request.json --dry-run  # Print the message instead of sending
  emailctl schedule request.json        # Start a delayed send
  emailctl cancel <executionArn>        # Stop a delayed send`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogger)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (env vars override it)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(validateCmd)
}

// initLogger routes slog through a charm logger so library logs read well
// in a terminal.
func initLogger() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	switch {
	case debug:
		logger.SetLevel(log.DebugLevel)
	case verbose:
		logger.SetLevel(log.InfoLevel)
	default:
		logger.SetLevel(log.WarnLevel)
	}
	slog.SetDefault(slog.New(logger))
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

// newHandler builds the handler stack from configuration. --dry-run forces
// the stdout provider.
func newHandler(cmd *cobra.Command) (*handler.Handler, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dryRun {
		cfg.Provider = "stdout"
	}

	svc, err := app.NewService(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	return handler.New(svc, cfg.Stage, slog.Default()), nil
}

// readRequest reads a request file, or stdin for "-".
func readRequest(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	return data, nil
}
