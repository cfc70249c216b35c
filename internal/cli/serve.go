package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TerronesDiaz/socketbench/internal/server"
)

var (
	servePort int
	serveMode string
	serveRoot string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run one origin server instance",
	Long: `Run one origin HTTP/1.1 server instance in the chosen concurrency mode.

threading handles each connection on a goroutine sharing the process metrics
register; forking hands each connection to an isolated worker process and is
only available on POSIX platforms.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		mode, err := server.ParseMode(serveMode)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.ThreadingPort
			if mode == server.ModeForking {
				port = cfg.ForkingPort
			}
		}
		root := serveRoot
		if root == "" {
			root = cfg.PublicDir
		}

		inst, err := server.New(server.Config{
			Host:        cfg.Host,
			Port:        port,
			Mode:        mode,
			PublicDir:   root,
			ServerName:  cfg.ServerName,
			ReadTimeout: cfg.ReadTimeout,
		}, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return inst.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default: mode's configured port)")
	serveCmd.Flags().StringVar(&serveMode, "mode", string(server.ModeThreading), "concurrency mode: threading or forking")
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "served root directory (default: configured public_dir)")
}
