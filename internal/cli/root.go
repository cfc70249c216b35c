// Package cli wires the socketbench commands: serve (one origin instance),
// benchmark (both instances plus the control API), and the hidden
// forked-mode worker.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TerronesDiaz/socketbench/internal/config"
	"github.com/TerronesDiaz/socketbench/internal/logging"
)

var (
	cfgFile string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "socketbench",
	Short:         "HTTP/1.1 origin server and benchmark harness comparing thread and process dispatch",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging.Level)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a TOML config file")
	rootCmd.AddCommand(serveCmd, benchmarkCmd, handleConnCmd)
}

// Execute runs the command tree. The caller decides the exit code.
func Execute() error {
	return rootCmd.Execute()
}
