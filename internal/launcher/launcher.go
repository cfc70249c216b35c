// Package launcher supervises the two origin-server child processes during
// benchmark mode.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/TerronesDiaz/socketbench/internal/config"
	"github.com/TerronesDiaz/socketbench/internal/server"
)

type child struct {
	name string
	cmd  *exec.Cmd
}

// Launcher starts and stops the origin-server instances as children of the
// benchmark process, one per concurrency mode.
type Launcher struct {
	cfg *config.Config
	// configPath is the --config flag the parent was started with; children
	// get the same file so only mode, port, and root differ per instance.
	configPath string
	logger     *zap.Logger
	children   []child
}

func New(cfg *config.Config, configPath string, logger *zap.Logger) *Launcher {
	return &Launcher{cfg: cfg, configPath: configPath, logger: logger.Named("launcher")}
}

// Start spawns the threading instance and, when the platform supports it,
// the forking instance. The forking instance is simply absent on platforms
// without the capability; the control API reports that to clients.
func (l *Launcher) Start() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	if err := l.spawn(exe, "threading", l.cfg.ThreadingPort); err != nil {
		return err
	}

	if server.ForkSupported() {
		// Stagger so the logs interleave readably and ports settle.
		time.Sleep(500 * time.Millisecond)
		if err := l.spawn(exe, "forking", l.cfg.ForkingPort); err != nil {
			l.Stop()
			return err
		}
	} else {
		l.logger.Warn("forking mode unavailable on this platform, starting threading only")
	}

	return nil
}

func (l *Launcher) spawn(exe, mode string, port int) error {
	cmd := exec.Command(exe, l.serveArgs(mode, port)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s server: %w", mode, err)
	}

	l.logger.Info("started server instance",
		zap.String("mode", mode),
		zap.Int("port", port),
		zap.Int("pid", cmd.Process.Pid),
	)
	l.children = append(l.children, child{name: mode, cmd: cmd})
	return nil
}

func (l *Launcher) serveArgs(mode string, port int) []string {
	args := []string{"serve",
		"--mode", mode,
		"--port", strconv.Itoa(port),
		"--root", l.cfg.PublicDir,
	}
	if l.configPath != "" {
		args = append(args, "--config", l.configPath)
	}
	return args
}

// Stop terminates every child and waits for it.
func (l *Launcher) Stop() {
	for _, c := range l.children {
		if c.cmd.Process == nil {
			continue
		}
		if err := c.cmd.Process.Signal(os.Interrupt); err != nil {
			c.cmd.Process.Kill()
		}
		c.cmd.Wait()
		l.logger.Info("stopped server instance", zap.String("mode", c.name))
	}
	l.children = nil
}
