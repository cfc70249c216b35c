// Package control exposes the benchmark orchestrator over HTTP for the
// dashboard: status probes, run trigger, results polling, and reset.
package control

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/TerronesDiaz/socketbench/internal/bench"
	"github.com/TerronesDiaz/socketbench/internal/middleware"
	"github.com/TerronesDiaz/socketbench/internal/server"
)

const (
	defaultBenchFile     = "/pdf/file-example_PDF_1MB.pdf"
	defaultBenchRequests = 10
	maxBenchRequests     = 10000
)

// API holds the handlers of the benchmark control surface.
type API struct {
	runner    *bench.Runner
	publicDir string
	logger    *zap.Logger
}

func NewAPI(runner *bench.Runner, publicDir string, logger *zap.Logger) *API {
	return &API{
		runner:    runner,
		publicDir: publicDir,
		logger:    logger.Named("control"),
	}
}

// Handler builds the full control-API handler, dashboard files included.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/benchmark/status", a.HandleStatus)
	mux.HandleFunc("/api/benchmark/run", a.HandleRun)
	mux.HandleFunc("/api/benchmark/results", a.HandleResults)
	mux.HandleFunc("/api/benchmark/reset", a.HandleReset)
	mux.Handle("/", http.FileServer(http.Dir(a.publicDir)))
	return middleware.EnableCORS(mux)
}

// HandleStatus reports per-target reachability and the host's forking
// capability.
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := map[string]any{
		"benchmark_server":  true,
		"platform":          runtime.GOOS,
		"forking_supported": server.ForkSupported(),
		"threading_server":  false,
		"forking_server":    false,
	}
	for _, t := range a.runner.Targets() {
		status[t.Name+"_server"] = a.runner.Reachable(t)
	}
	a.writeJSON(w, http.StatusOK, status)
}

// HandleRun starts a run asynchronously and returns immediately; a run
// already in flight yields 409 and leaves it untouched.
func (a *API) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()

	cfg := bench.RunConfig{
		File:     defaultBenchFile,
		Requests: defaultBenchRequests,
		Parallel: true,
	}
	if f := q.Get("file"); f != "" {
		if !strings.HasPrefix(f, "/") {
			f = "/" + f
		}
		cfg.File = f
	}
	if v := q.Get("requests"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxBenchRequests {
			a.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "requests must be an integer between 1 and " + strconv.Itoa(maxBenchRequests),
			})
			return
		}
		cfg.Requests = n
	}
	if v := q.Get("parallel"); v != "" {
		cfg.Parallel = strings.EqualFold(v, "true")
	}
	if v := q.Get("process"); v != "" {
		cfg.Process = strings.EqualFold(v, "true")
	}

	id, err := a.runner.Start(cfg)
	if err != nil {
		if errors.Is(err, bench.ErrRunInProgress) {
			a.writeJSON(w, http.StatusConflict, map[string]any{"error": "benchmark already in progress"})
			return
		}
		a.writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	a.logger.Info("benchmark accepted",
		zap.String("run_id", id),
		zap.String("file", cfg.File),
		zap.Int("requests", cfg.Requests),
		zap.Bool("parallel", cfg.Parallel),
		zap.Bool("process", cfg.Process),
	)
	a.writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "started",
		"run_id":   id,
		"file":     cfg.File,
		"requests": cfg.Requests,
		"parallel": cfg.Parallel,
		"process":  cfg.Process,
	})
}

// HandleResults returns the current run state; the dashboard polls this
// until status is "completed".
func (a *API) HandleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.writeJSON(w, http.StatusOK, a.runner.Results())
}

// HandleReset clears the stored run and every target's metrics register.
func (a *API) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := a.runner.Reset(); err != nil {
		if errors.Is(err, bench.ErrRunInProgress) {
			a.writeJSON(w, http.StatusConflict, map[string]any{"error": "benchmark already in progress"})
			return
		}
		// Unreachable targets keep their own counters; the stored run is
		// gone either way.
		a.logger.Warn("partial reset", zap.Error(err))
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("encode response", zap.Error(err))
	}
}
