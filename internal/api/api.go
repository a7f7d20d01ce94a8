// Package api serves DDL extraction and the scan ledger over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/danizen/sqlextras/internal/ddl"
	"github.com/danizen/sqlextras/internal/lexer"
	"github.com/danizen/sqlextras/internal/storage"
	"github.com/danizen/sqlextras/pkg/logger"
)

// Server is the HTTP API server for sqlextras.
type Server struct {
	config *Config
	store  storage.Store
	log    *log.Logger
	server *http.Server
}

// Config holds API server configuration.
type Config struct {
	ListenAddr string

	// Bearer tokens are required on /api/v1 when JWTSecret is set.
	JWTSecret string
	Issuer    string
	Audience  string

	// Defaults for requests that do not name them.
	Dialect  lexer.Dialect
	Encoding string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

// New creates a new API server. store may be nil, in which case the scan
// endpoints answer 503.
func New(cfg *Config, store storage.Store) *Server {
	s := &Server{
		config: cfg,
		store:  store,
		log:    logger.With("component", "api"),
	}
	if s.config.MaxBodyBytes <= 0 {
		s.config.MaxBodyBytes = 16 << 20
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	// Extraction API
	mux.Handle("POST /api/v1/actions", s.authenticated(http.HandlerFunc(s.handleActions)))
	mux.Handle("POST /api/v1/objects", s.authenticated(http.HandlerFunc(s.handleObjects)))

	// Ledger API
	mux.Handle("GET /api/v1/scans", s.authenticated(http.HandlerFunc(s.handleListScans)))
	mux.Handle("GET /api/v1/scans/{id}", s.authenticated(http.HandlerFunc(s.handleGetScan)))

	readTimeout, writeTimeout := cfg.ReadTimeout, cfg.WriteTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	s.server = &http.Server{
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the root handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.ListenAddr, err)
	}
	s.server.Addr = ln.Addr().String()

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server error", "err", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", sw.status, "took", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// --- Health endpoints ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// Check ledger connectivity
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  "ledger connection failed",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// --- Extraction API ---

type actionsResponse struct {
	Count   int          `json:"count"`
	Actions []ddl.Action `json:"actions"`
	ScanID  *uuid.UUID   `json:"scan_id,omitempty"`
}

type objectsResponse struct {
	Count   int           `json:"count"`
	Objects ddl.ObjectSet `json:"objects"`
}

// extraction is the outcome of running a request body through the extractor.
type extraction struct {
	dialect  lexer.Dialect
	encoding string
	body     []byte
	actions  []ddl.Action
}

// extract reads the request body and extracts its actions, writing an error
// response and returning false on failure.
func (s *Server) extract(w http.ResponseWriter, r *http.Request) (*extraction, bool) {
	q := r.URL.Query()

	dialect := s.config.Dialect
	if name := q.Get("dialect"); name != "" {
		d, err := lexer.ParseDialect(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "%v", err)
			return nil, false
		}
		dialect = d
	}
	encoding := s.config.Encoding
	if e := q.Get("encoding"); e != "" {
		encoding = e
	}
	if encoding == "" {
		encoding = lexer.DefaultEncoding
	}

	lx, err := lexer.New(dialect)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return nil, false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "read body: %v", err)
		return nil, false
	}

	extractor := ddl.NewExtractor(lx, ddl.WithLogger(s.log))
	actions, err := extractor.ExtractActions(bytes.NewReader(body), encoding)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return nil, false
	}

	return &extraction{dialect: dialect, encoding: encoding, body: body, actions: actions}, true
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	ex, ok := s.extract(w, r)
	if !ok {
		return
	}
	resp := actionsResponse{Count: len(ex.actions), Actions: ex.actions}
	if resp.Actions == nil {
		resp.Actions = []ddl.Action{}
	}

	// Record the scan when the caller names its source
	if source := r.URL.Query().Get("source"); source != "" {
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, "no ledger configured")
			return
		}
		if err := storage.ValidateSource(source); err != nil {
			writeError(w, http.StatusBadRequest, "%v", err)
			return
		}
		scan := storage.NewScan(source, ex.encoding, string(ex.dialect), ex.body)
		if err := s.store.RecordScan(r.Context(), scan, ex.actions); err != nil {
			writeError(w, http.StatusInternalServerError, "record scan: %v", err)
			return
		}
		resp.ScanID = &scan.ID
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	ex, ok := s.extract(w, r)
	if !ok {
		return
	}
	objects := ddl.ObjectsOf(ex.actions)
	writeJSON(w, http.StatusOK, objectsResponse{Count: objects.Len(), Objects: objects})
}

// --- Ledger API ---

type scanResponse struct {
	*storage.Scan
	Actions []ddl.Action `json:"actions"`
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no ledger configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit %q", v)
			return
		}
		limit = n
	}

	scans, err := s.store.ListScans(r.Context(), r.URL.Query().Get("source"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list scans: %v", err)
		return
	}
	if scans == nil {
		scans = []*storage.Scan{}
	}

	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no ledger configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scan id %q", r.PathValue("id"))
		return
	}

	scan, err := s.store.GetScan(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "scan %s not found", id)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get scan: %v", err)
		return
	}

	actions, err := s.store.ListActions(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list actions: %v", err)
		return
	}
	if actions == nil {
		actions = []ddl.Action{}
	}

	writeJSON(w, http.StatusOK, scanResponse{Scan: scan, Actions: actions})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, status, map[string]string{"error": msg})
}
