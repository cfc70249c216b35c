package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TerronesDiaz/socketbench/internal/bench"
	"github.com/TerronesDiaz/socketbench/internal/control"
	"github.com/TerronesDiaz/socketbench/internal/launcher"
	"github.com/TerronesDiaz/socketbench/internal/server"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Launch both origin instances and the benchmark control API",
	Long: `Start the threading instance, the forking instance when the platform
supports it, and the benchmark control API for the dashboard. Ctrl+C tears
everything down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		l := launcher.New(cfg, cfgFile, logger)
		if err := l.Start(); err != nil {
			return err
		}
		defer l.Stop()

		targets := []bench.Target{
			{Name: "threading", Host: "127.0.0.1", Port: cfg.ThreadingPort},
		}
		if server.ForkSupported() {
			targets = append(targets, bench.Target{Name: "forking", Host: "127.0.0.1", Port: cfg.ForkingPort})
		}

		runner := bench.NewRunner(bench.Options{
			Targets:        targets,
			RequestTimeout: cfg.Bench.RequestTimeout,
			ProbeTimeout:   cfg.Bench.ProbeTimeout,
			MaxWorkers:     cfg.Bench.MaxWorkers,
		}, logger)

		api := control.NewAPI(runner, cfg.PublicDir, logger)
		return api.ListenAndServe(ctx, cfg.Host, cfg.ControlPort)
	},
}
