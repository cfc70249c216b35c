package bench

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRunInProgress rejects a second run (or a reset) while one is active.
var ErrRunInProgress = errors.New("benchmark run already in progress")

// Target is one server instance under test.
type Target struct {
	Name string // "threading" or "forking"
	Host string
	Port int
}

func (t Target) addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Options configures the runner.
type Options struct {
	Targets []Target
	// RequestTimeout is the connect+read deadline for a single request; a
	// stalled target costs one failed request, never a hung run.
	RequestTimeout time.Duration
	// ProbeTimeout is the dial timeout for reachability checks.
	ProbeTimeout time.Duration
	// MaxWorkers bounds concurrent connections during a parallel run.
	MaxWorkers int
}

// Runner executes at most one benchmark run at a time and keeps the results
// of the last one.
type Runner struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	results Results
}

func NewRunner(opts Options, logger *zap.Logger) *Runner {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 2 * time.Second
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 100
	}
	return &Runner{
		opts:    opts,
		logger:  logger.Named("bench"),
		results: Results{Status: StatusIdle},
	}
}

// Start launches a run asynchronously and returns its ID, or
// ErrRunInProgress while one is active.
func (r *Runner) Start(cfg RunConfig) (string, error) {
	if cfg.Requests < 1 {
		return "", fmt.Errorf("request count must be positive, got %d", cfg.Requests)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.results.Status == StatusRunning {
		return "", ErrRunInProgress
	}

	id := uuid.NewString()
	r.results = Results{
		Status:   StatusRunning,
		RunID:    id,
		File:     cfg.File,
		Requests: cfg.Requests,
		Parallel: cfg.Parallel,
		Process:  cfg.Process,
	}

	go r.run(cfg, id)
	return id, nil
}

// Results returns the state of the current or last run.
func (r *Runner) Results() Results {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results
}

// Reachable reports whether the target currently accepts connections.
func (r *Runner) Reachable(t Target) bool {
	conn, err := net.DialTimeout("tcp", t.addr(), r.opts.ProbeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Targets exposes the configured targets, for status reporting.
func (r *Runner) Targets() []Target {
	return r.opts.Targets
}

// Reset discards the stored run and zeroes every target's own metrics
// register via its /api/reset endpoint. Rejected while a run is active.
func (r *Runner) Reset() error {
	r.mu.Lock()
	if r.results.Status == StatusRunning {
		r.mu.Unlock()
		return ErrRunInProgress
	}
	r.results = Results{Status: StatusIdle}
	r.mu.Unlock()

	client := http.Client{Timeout: r.opts.ProbeTimeout}
	var errs []error
	for _, t := range r.opts.Targets {
		resp, err := client.Get("http://" + t.addr() + "/api/reset")
		if err != nil {
			r.logger.Warn("reset target", zap.String("target", t.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("reset %s: %w", t.Name, err))
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	return errors.Join(errs...)
}

func (r *Runner) run(cfg RunConfig, id string) {
	started := time.Now()
	r.logger.Info("run started",
		zap.String("run_id", id),
		zap.String("file", cfg.File),
		zap.Int("requests", cfg.Requests),
		zap.Bool("parallel", cfg.Parallel),
		zap.Bool("process", cfg.Process),
	)

	byName := make(map[string]*TargetResult, len(r.opts.Targets))
	for _, t := range r.opts.Targets {
		res := r.benchTarget(t, cfg)
		byName[t.Name] = res
		r.logger.Info("target finished",
			zap.String("target", t.Name),
			zap.Int("successful", res.Successful),
			zap.Int("failed", res.Failed),
			zap.Float64("avg_time", res.AvgTime),
			zap.Float64("rps", res.RequestsPerSecond),
		)
	}

	threading := byName["threading"]
	forking := byName["forking"]
	comparison := Compare(threading, forking)

	r.mu.Lock()
	r.results.Status = StatusCompleted
	r.results.Timestamp = started.Format("2006-01-02 15:04:05")
	r.results.Threading = threading
	r.results.Forking = forking
	r.results.Comparison = comparison
	r.mu.Unlock()

	r.logger.Info("run completed", zap.String("run_id", id), zap.String("winner", comparison.Winner))
}

type requestResult struct {
	ok      bool
	elapsed time.Duration
	reason  string
}

// benchTarget issues all requests of the run against one target. It always
// produces a result, even when every request fails.
func (r *Runner) benchTarget(t Target, cfg RunConfig) *TargetResult {
	path := cfg.File
	if cfg.Process {
		if strings.Contains(path, "?") {
			path += "&process=true"
		} else {
			path += "?process=true"
		}
	}

	n := cfg.Requests
	outcomes := make([]requestResult, 0, n)
	start := time.Now()

	if cfg.Parallel {
		workers := n
		if workers > r.opts.MaxWorkers {
			workers = r.opts.MaxWorkers
		}

		jobs := make(chan struct{})
		out := make(chan requestResult)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range jobs {
					out <- r.doRequest(t, path)
				}
			}()
		}
		go func() {
			for i := 0; i < n; i++ {
				jobs <- struct{}{}
			}
			close(jobs)
		}()
		go func() {
			wg.Wait()
			close(out)
		}()

		for res := range out {
			outcomes = append(outcomes, res)
		}
	} else {
		for i := 0; i < n; i++ {
			outcomes = append(outcomes, r.doRequest(t, path))
		}
	}

	return aggregate(n, outcomes, time.Since(start))
}

// doRequest issues one raw HTTP/1.1 request and times it wall-clock from
// dial to drained body. This client-side timing is the authoritative
// measurement; the server's own register never enters the comparison.
func (r *Runner) doRequest(t Target, path string) requestResult {
	start := time.Now()

	conn, err := net.DialTimeout("tcp", t.addr(), r.opts.RequestTimeout)
	if err != nil {
		return requestResult{elapsed: time.Since(start), reason: classifyErr(err)}
	}
	defer conn.Close()
	conn.SetDeadline(start.Add(r.opts.RequestTimeout))

	_, err = fmt.Fprintf(conn, "GET %s HTTP/1.1\r\nHost: %s\r\nUser-Agent: socketbench\r\nConnection: close\r\n\r\n", path, t.addr())
	if err != nil {
		return requestResult{elapsed: time.Since(start), reason: classifyErr(err)}
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return requestResult{elapsed: time.Since(start), reason: classifyErr(err)}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	elapsed := time.Since(start)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return requestResult{elapsed: elapsed, reason: fmt.Sprintf("non-2xx: %d", resp.StatusCode)}
	}
	return requestResult{ok: true, elapsed: elapsed}
}

func classifyErr(err error) string {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	if strings.Contains(err.Error(), "refused") {
		return "connection refused"
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "connection closed"
	}
	return "request error"
}

func aggregate(n int, outcomes []requestResult, total time.Duration) *TargetResult {
	res := &TargetResult{
		TotalRequests: n,
		TotalTime:     round4(total.Seconds()),
	}

	// Microsecond buckets up to an hour comfortably cover any single
	// request bounded by the client timeout.
	hist := hdrhistogram.New(1, int64(time.Hour/time.Microsecond), 3)
	var sum time.Duration

	for _, o := range outcomes {
		if !o.ok {
			res.Failed++
			if res.Errors == nil {
				res.Errors = make(map[string]int)
			}
			res.Errors[o.reason]++
			continue
		}
		res.Successful++
		sum += o.elapsed
		hist.RecordValue(o.elapsed.Microseconds())
	}

	if res.Successful > 0 {
		avg := sum / time.Duration(res.Successful)
		res.AvgTime = round4(avg.Seconds())
		res.MinTime = round4(microsToSeconds(hist.Min()))
		res.MaxTime = round4(microsToSeconds(hist.Max()))
		res.P50Time = round4(microsToSeconds(hist.ValueAtQuantile(50)))
		res.P95Time = round4(microsToSeconds(hist.ValueAtQuantile(95)))
		res.P99Time = round4(microsToSeconds(hist.ValueAtQuantile(99)))
		if total > 0 {
			res.RequestsPerSecond = round2(float64(res.Successful) / total.Seconds())
		}
	}
	return res
}

func microsToSeconds(v int64) float64 {
	return float64(v) / 1e6
}
