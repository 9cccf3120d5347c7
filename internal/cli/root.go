package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gemchat/backend/internal/config"
	"github.com/gemchat/backend/internal/logger"
)

var (
	logLevel string
	pretty   bool
)

var rootCmd = &cobra.Command{
	Use:   "chatcli",
	Short: "Terminal tools for the Gemini chat backend",
	Long: `chatcli talks to the same completion and dictation backends as the HTTP
service. Use "repl" for an interactive conversation and "transcribe" to run
dictation on a recorded file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "human readable log output")
}

// loadConfig reads .env and the environment and configures logging.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Setup(logger.Config{Level: logLevel, Pretty: pretty})
	return cfg, nil
}

// GetRootCmd returns the root command for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}
