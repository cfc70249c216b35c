package server

import (
	"encoding/json"
	"fmt"
	"math"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TerronesDiaz/socketbench/internal/httpx"
	"github.com/TerronesDiaz/socketbench/internal/metrics"
	"github.com/TerronesDiaz/socketbench/internal/transform"
)

const allowedMethods = "GET, HEAD"

// contentTypes covers the files the dashboard links to; anything else falls
// back to the platform MIME table and then to octet-stream.
var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".txt":  "text/plain; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".mp4":  "video/mp4",
	".pdf":  "application/pdf",
}

// Handler serves one parsed request over a raw connection: the file tree
// under the public root plus the instance's /api endpoints.
type Handler struct {
	cfg    Config
	reg    *metrics.Register
	hook   transform.Transformer
	logger *zap.Logger
}

func NewHandler(cfg Config, reg *metrics.Register, hook transform.Transformer, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		reg:    reg,
		hook:   hook,
		logger: logger.Named("handler"),
	}
}

// HandleConn drives one connection through parse, dispatch, and response,
// closing it on every exit path. It returns the result record and never
// records metrics itself; the dispatcher does that exactly once.
func (h *Handler) HandleConn(conn net.Conn) (rec Record) {
	start := time.Now()
	status := 0

	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("panic in handler", zap.Any("panic", p))
			status = http.StatusInternalServerError
			h.writeError(conn, status, false)
		}
		conn.Close()
		rec = Record{Status: status, ElapsedNS: time.Since(start).Nanoseconds()}
	}()

	if h.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(start.Add(h.cfg.ReadTimeout))
	}

	req, err := httpx.ReadRequest(conn)
	if err != nil {
		h.logger.Debug("bad request", zap.Error(err))
		status = http.StatusBadRequest
		h.writeError(conn, status, false)
		return
	}

	status = h.serve(conn, req)
	return
}

func (h *Handler) serve(conn net.Conn, req *httpx.Request) int {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		h.write(conn, &httpx.Response{
			Status:      http.StatusMethodNotAllowed,
			ContentType: "text/html",
			Body:        errorBody(http.StatusMethodNotAllowed),
			Allow:       allowedMethods,
		})
		return http.StatusMethodNotAllowed
	}

	headOnly := req.Method == http.MethodHead

	switch req.Path {
	case "/api/metrics":
		return h.serveMetrics(conn, headOnly)
	case "/api/reset":
		return h.serveReset(conn, headOnly)
	case "/api/info":
		return h.serveInfo(conn, headOnly)
	}

	return h.serveFile(conn, req, headOnly)
}

func (h *Handler) serveFile(conn net.Conn, req *httpx.Request, headOnly bool) int {
	full, status := h.resolve(req.Path)
	if status != 0 {
		h.writeError(conn, status, headOnly)
		return status
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		h.writeError(conn, http.StatusNotFound, headOnly)
		return http.StatusNotFound
	}

	data, err := os.ReadFile(full)
	if err != nil {
		h.logger.Error("read file", zap.String("path", full), zap.Error(err))
		h.writeError(conn, http.StatusInternalServerError, headOnly)
		return http.StatusInternalServerError
	}

	ctype := contentTypeFor(full)

	if req.ProcessRequested() && transform.Eligible(mediaType(ctype)) {
		out, outType, terr := h.hook.Transform(data, mediaType(ctype))
		if terr != nil {
			h.logger.Error("content transform", zap.String("path", full), zap.Error(terr))
			h.writeError(conn, http.StatusInternalServerError, headOnly)
			return http.StatusInternalServerError
		}
		data, ctype = out, outType
	}

	h.write(conn, &httpx.Response{
		Status:       http.StatusOK,
		ContentType:  ctype,
		Body:         data,
		LastModified: info.ModTime(),
		HeadOnly:     headOnly,
	})
	return http.StatusOK
}

// resolve maps a request path to a file under the public root. The returned
// status is 0 when the path is acceptable, 403 on traversal.
func (h *Handler) resolve(reqPath string) (string, int) {
	p := reqPath
	if p == "/" {
		p = "/index.html"
	}

	if containsDotDot(p) {
		return "", http.StatusForbidden
	}

	clean := path.Clean(p)
	return filepath.Join(h.cfg.PublicDir, filepath.FromSlash(clean)), 0
}

func containsDotDot(p string) bool {
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func (h *Handler) serveMetrics(conn net.Conn, headOnly bool) int {
	snap := h.reg.Snapshot()
	return h.writeJSON(conn, map[string]any{
		"mode":       string(h.cfg.Mode),
		"port":       h.cfg.Port,
		"requests":   snap.Requests,
		"avg_time":   roundSeconds(snap.AvgTime),
		"total_time": roundSeconds(snap.TotalTime),
	}, headOnly)
}

func (h *Handler) serveReset(conn net.Conn, headOnly bool) int {
	h.reg.Reset()
	return h.writeJSON(conn, map[string]any{
		"status":  "ok",
		"message": "Metrics reset",
	}, headOnly)
}

func (h *Handler) serveInfo(conn net.Conn, headOnly bool) int {
	return h.writeJSON(conn, map[string]any{
		"mode":              string(h.cfg.Mode),
		"port":              h.cfg.Port,
		"host":              h.cfg.Host,
		"platform":          runtime.GOOS,
		"forking_available": ForkSupported(),
	}, headOnly)
}

func (h *Handler) writeJSON(conn net.Conn, v any, headOnly bool) int {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encode json", zap.Error(err))
		h.writeError(conn, http.StatusInternalServerError, headOnly)
		return http.StatusInternalServerError
	}
	h.write(conn, &httpx.Response{
		Status:      http.StatusOK,
		ContentType: "application/json; charset=utf-8",
		Body:        body,
		HeadOnly:    headOnly,
	})
	return http.StatusOK
}

func (h *Handler) writeError(conn net.Conn, status int, headOnly bool) {
	h.write(conn, &httpx.Response{
		Status:      status,
		ContentType: "text/html",
		Body:        errorBody(status),
		HeadOnly:    headOnly,
	})
}

// write is best-effort: the client may already be gone, and the error status
// has been decided by the time we serialize.
func (h *Handler) write(conn net.Conn, resp *httpx.Response) {
	if err := httpx.WriteResponse(conn, h.cfg.ServerName, resp); err != nil {
		h.logger.Debug("write response", zap.Error(err))
	}
}

func errorBody(status int) []byte {
	return []byte(fmt.Sprintf("<html><body><h1>%d %s</h1></body></html>", status, httpx.StatusText(status)))
}

func contentTypeFor(p string) string {
	ext := strings.ToLower(filepath.Ext(p))
	if t, ok := contentTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// mediaType strips parameters like "; charset=utf-8".
func mediaType(ctype string) string {
	mt, _, _ := strings.Cut(ctype, ";")
	return strings.TrimSpace(mt)
}

// roundSeconds mirrors the 4-decimal seconds the dashboard displays.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*10000) / 10000
}
