package server

import (
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/TerronesDiaz/socketbench/internal/metrics"
	"github.com/TerronesDiaz/socketbench/internal/transform"
)

// HandleInherited serves exactly one connection inherited from the parent as
// an open file descriptor, then returns the result record for the parent to
// aggregate. The register created here is worker-local and starts empty, so
// /api/metrics and /api/reset answered by a forked worker see only this one
// process — the documented forked-mode divergence.
func HandleInherited(f *os.File, cfg Config, logger *zap.Logger) (Record, error) {
	conn, err := net.FileConn(f)
	if err != nil {
		f.Close()
		return Record{}, fmt.Errorf("inherited connection: %w", err)
	}
	f.Close()

	cfg.Mode = ModeForking
	h := NewHandler(cfg, metrics.NewRegister(), transform.Default(), logger)
	return h.HandleConn(conn), nil
}
