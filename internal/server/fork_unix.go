//go:build unix

package server

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ForkSupported reports whether this platform can hand accepted sockets to
// isolated worker processes.
func ForkSupported() bool { return true }

// superviseForked hands the connection to a fresh worker process and records
// the result it reports. The worker shares no memory with this process; the
// stdout record is the only channel back.
func (s *Instance) superviseForked(conn net.Conn) {
	start := time.Now()

	rec, err := s.spawnWorker(conn)
	if err != nil {
		s.logger.Error("forked worker failed", zap.Error(err))
		s.reg.Record(time.Since(start), false)
		return
	}
	s.reg.Record(rec.Elapsed(), rec.Success())
}

func (s *Instance) spawnWorker(conn net.Conn) (Record, error) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return Record{}, fmt.Errorf("forking needs a TCP connection, got %T", conn)
	}

	f, err := tc.File()
	if err != nil {
		conn.Close()
		return Record{}, fmt.Errorf("dup connection: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		conn.Close()
		f.Close()
		return Record{}, fmt.Errorf("locate executable: %w", err)
	}

	var out bytes.Buffer
	cmd := exec.Command(exe, "handle-conn",
		"--host", s.cfg.Host,
		"--port", strconv.Itoa(s.cfg.Port),
		"--root", s.cfg.PublicDir,
		"--server-name", s.cfg.ServerName,
		"--read-timeout", s.cfg.ReadTimeout.String(),
	)
	cmd.ExtraFiles = []*os.File{f} // fd 3 in the worker
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		conn.Close()
		f.Close()
		return Record{}, fmt.Errorf("spawn worker: %w", err)
	}

	// The worker holds its own duplicate; drop ours so the peer sees the
	// close as soon as the worker finishes.
	conn.Close()
	f.Close()

	if err := cmd.Wait(); err != nil {
		return Record{}, fmt.Errorf("worker exited: %w", err)
	}
	return DecodeRecord(out.Bytes())
}
