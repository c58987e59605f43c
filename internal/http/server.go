package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lsmkv/pkg/config"
	"lsmkv/pkg/dberrors"
	"lsmkv/pkg/store"
)

const (
	contentTypeJSON        = "application/json"
	contentTypeText        = "text/plain; version=0.0.4"
	defaultHTTPPort        = 8080
	defaultShutdownTimeout = time.Second * 5

	defaultRangeLimit = 100
	maxRangeLimit     = 10_000
)

type iStoreAPI interface {
	Upsert(key, value []byte) error
	Remove(key []byte) error
	Get(key []byte) ([]byte, bool, error)
	RangeFrom(from []byte) (*store.RangeIterator, error)
	Flush() error
	Stats() store.Stats
}

type iMetrics interface {
	IncCounter(name string, labels map[string]string, delta float64)
	ObserveHistogram(name string, labels map[string]string, value float64)
	WriteText(w io.Writer) error
}

// Server exposes a store over HTTP.
type Server struct {
	store             iStoreAPI
	metrics           iMetrics
	httpServer        *http.Server
	readHeaderTimeout time.Duration
	URL               string
	addr              string
}

// NewServer creates a new server instance. metrics may be nil.
func NewServer(store iStoreAPI, metrics iMetrics, cfg config.ServerConfig) *Server {
	port := cfg.Port
	if port == 0 {
		port = defaultHTTPPort
	}
	timeout := cfg.ReadHeaderTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Server{
		store:             store,
		metrics:           metrics,
		readHeaderTimeout: timeout,
		URL:               "http://localhost:" + strconv.Itoa(port),
		addr:              ":" + strconv.Itoa(port),
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           s.createRouter(),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", s.URL)
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// createRouter builds chi router
func (s *Server) createRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Delete("/", s.handleDelete)
		r.Put("/string", s.handlePut)
		r.Get("/string", s.handleGet)
		r.Get("/range", s.handleRange)
		r.Get("/stats", s.handleStats)
		r.Post("/flush", s.handleFlush)
	})

	return r
}

// instrument counts requests per route pattern and records their latency.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		labels := map[string]string{
			"method": r.Method,
			"route":  route,
			"code":   strconv.Itoa(ww.Status()),
		}
		s.metrics.IncCounter("lsmdb_http_requests_total", labels, 1)
		s.metrics.ObserveHistogram("lsmdb_http_request_seconds", map[string]string{"route": route}, time.Since(start).Seconds())
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, dberrors.ErrClosed) {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, NewErrorResponse(err.Error()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentTypeText)
	if s.metrics == nil {
		return
	}
	if err := s.metrics.WriteText(w); err != nil {
		slog.Warn("Failed to write metrics response", "error", err)
	}
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Failed to parse form"))
		return
	}

	key := r.FormValue("key")
	if key == "" || !r.Form.Has("value") {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key or value"))
		return
	}

	if err := s.store.Upsert([]byte(key), []byte(r.FormValue("value"))); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key"))
		return
	}

	value, found, err := s.store.Get([]byte(key))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	if !found {
		s.writeJSON(w, http.StatusNotFound, NewErrorResponse("Key not found"))
		return
	}

	s.writeJSON(w, http.StatusOK, NewValueResponse(string(value)))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key"))
		return
	}

	if err := s.store.Remove([]byte(key)); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := defaultRangeLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRangeLimit {
			s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(fmt.Sprintf("limit must be in [1, %d]", maxRangeLimit)))
			return
		}
		limit = n
	}

	it, err := s.store.RangeFrom([]byte(query.Get("from")))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	defer func() {
		if err := it.Close(); err != nil {
			slog.Warn("Failed to close range iterator", "error", err)
		}
	}()

	records := make([]Record, 0, min(limit, defaultRangeLimit))
	for ; it.Valid() && len(records) < limit; it.Next() {
		records = append(records, Record{Key: string(it.Key()), Value: string(it.Value())})
	}
	if err := it.Err(); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, NewRecordsResponse(records))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.store.Stats()
	s.writeJSON(w, http.StatusOK, NewStatsResponse(StatsDTO{
		Generations:    st.Generations,
		NextGeneration: uint64(st.NextGeneration),
		MemtableKeys:   st.MemtableKeys,
		MemtableBytes:  st.MemtableBytes,
	}))
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Flush(); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}
