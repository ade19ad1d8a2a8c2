package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	hcsr04 "github.com/derekstavis/hc-sr04"
	"github.com/derekstavis/hc-sr04/internal/attr"
)

// Constants for route prefixing. Versioning is explicit to allow non-breaking additions.
const (
	APIVersion     = "v1"
	DefaultAddress = "127.0.0.1:8787"

	// ValuePath mirrors the sysfs layout of the kernel driver: class
	// "distance", attribute "value".
	ValuePath = "/" + APIVersion + "/distance/value"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// TimeNow abstracts time for tests; overridden in tests.
var TimeNow = func() time.Time { return time.Now() }

// ServerOptions configures the HTTP server.
// Timeouts are conservative defaults suitable for a local control-plane server.
type ServerOptions struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	Logger            *slog.Logger
}

// Server hosts the HTTP API for the sensor.
type Server struct {
	http   *http.Server
	value  *attr.Attribute
	logger *slog.Logger
	opts   ServerOptions
}

// NewServer constructs a new API server bound to the provided attribute.
// The server does not start listening until Start is called.
func NewServer(value *attr.Attribute, opts ServerOptions) *Server {
	if value == nil {
		panic("api.NewServer: value is nil")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddress
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 2 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With("component", "api")

	mux := http.NewServeMux()
	s := &Server{
		value:  value,
		logger: opts.Logger,
		opts:   opts,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           withLogging(mux, opts.Logger),
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(opts.Logger.Handler(), slog.LevelError),
			BaseContext: func(l net.Listener) context.Context {
				return context.Background()
			},
		},
	}

	// Routes
	mux.HandleFunc("/"+APIVersion+"/healthz", s.handleHealthz)
	mux.HandleFunc(ValuePath, s.handleValue)

	return s
}

// Handler returns the routed handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start begins serving HTTP in a background goroutine.
// It returns immediately; use Stop for graceful shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ListenAndServe", "err", err)
		}
	}()
}

// Stop gracefully shuts down the server, waiting up to ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	timeout := s.opts.ShutdownTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.http.Shutdown(ctx)
}

// handleHealthz is a simple readiness/liveness endpoint.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": TimeNow().UTC().Format(time.RFC3339),
	})
}

// handleValue performs one measurement per GET.
// Method: GET
// Response (200): text/plain decimal line, "-1" on timeout
// Errors:
//   - 405 for any other method; the value is read-only
//   - 503 when the sensor is closed or busy
func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		// Let the attribute refuse, so there is a single place that
		// decides writes are not allowed.
		body, _ := io.ReadAll(io.LimitReader(r.Body, 64))
		err := s.value.Write(body)
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, err.Error())
		return
	}
	v, err := s.value.Read()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, hcsr04.ErrClosed) || errors.Is(err, hcsr04.ErrBusy) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, v)
}

// withLogging logs method, path and duration of every request.
func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := TimeNow()
		next.ServeHTTP(w, r)
		logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start), "ua", r.UserAgent())
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIError{
		Error:     msg,
		Timestamp: TimeNow().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}
