// Package server runs the long-lived sqlextras components together: the scan
// ledger, the HTTP API and the scheduled syncer.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/danizen/sqlextras/internal/api"
	"github.com/danizen/sqlextras/internal/config"
	"github.com/danizen/sqlextras/internal/ddl"
	"github.com/danizen/sqlextras/internal/lexer"
	"github.com/danizen/sqlextras/internal/source"
	"github.com/danizen/sqlextras/internal/storage"
	"github.com/danizen/sqlextras/internal/syncer"
	"github.com/danizen/sqlextras/pkg/logger"
)

// Config holds server configuration.
type Config struct {
	// Ledger connection string; empty runs without a ledger
	LedgerURL      string
	MaxConnections int
	ConnectTimeout time.Duration

	API api.Config

	// Remote source access for the syncer
	S3          source.S3Config
	HTTPTimeout time.Duration

	// Scheduled rescans; disabled when no paths are set
	SyncPaths    []string
	SyncSchedule string
}

// ConfigFrom maps the application config onto a server config.
func ConfigFrom(cfg *config.Config) (*Config, error) {
	dialect, err := lexer.ParseDialect(cfg.Scan.Dialect)
	if err != nil {
		return nil, err
	}
	return &Config{
		LedgerURL:      cfg.Ledger.URL,
		MaxConnections: cfg.Ledger.MaxConnections,
		ConnectTimeout: cfg.Ledger.ConnectTimeout,
		API: api.Config{
			ListenAddr:   cfg.API.ListenAddr,
			JWTSecret:    cfg.API.JWTSecret,
			Issuer:       cfg.API.Issuer,
			Audience:     cfg.API.Audience,
			Dialect:      dialect,
			Encoding:     cfg.Scan.Encoding,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
			MaxBodyBytes: cfg.API.MaxBodyBytes,
		},
		S3: source.S3Config{
			AccessKey: cfg.Source.S3AccessKey,
			SecretKey: cfg.Source.S3SecretKey,
			Region:    cfg.Source.S3Region,
			Endpoint:  cfg.Source.S3Endpoint,
		},
		HTTPTimeout:  cfg.Source.HTTPTimeout,
		SyncPaths:    cfg.Sync.Paths,
		SyncSchedule: cfg.Sync.Schedule,
	}, nil
}

// Server orchestrates all sqlextras components.
type Server struct {
	config    *Config
	store     storage.Store
	ownsStore bool
	api       *api.Server
	syncer    *syncer.Syncer
	log       *log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStore uses an already initialized ledger instead of connecting to
// LedgerURL. The caller keeps ownership of store.
func WithStore(store storage.Store) Option {
	return func(s *Server) { s.store = store }
}

// New creates a new server with the given config.
func New(cfg *Config, opts ...Option) *Server {
	s := &Server{
		config: cfg,
		log:    logger.With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start connects the ledger, starts the API and schedules syncing.
func (s *Server) Start(ctx context.Context) error {
	if s.store == nil && s.config.LedgerURL != "" {
		store, err := storage.New(ctx, s.config.LedgerURL, s.config.MaxConnections, s.config.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("connect to ledger: %w", err)
		}
		if err := store.Init(ctx); err != nil {
			store.Close()
			return fmt.Errorf("initialize ledger: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}
	if s.store == nil {
		s.log.Warn("no ledger configured; scan endpoints are disabled")
	}

	apiCfg := s.config.API
	s.api = api.New(&apiCfg, s.store)
	if err := s.api.Start(); err != nil {
		s.closeStore()
		return fmt.Errorf("start api: %w", err)
	}
	s.log.Info("api listening", "addr", s.api.Addr(), "auth", apiCfg.JWTSecret != "")

	if len(s.config.SyncPaths) == 0 {
		return nil
	}
	if s.store == nil {
		s.log.Warn("sync paths configured without a ledger; syncing is disabled")
		return nil
	}

	lx, err := lexer.New(apiCfg.Dialect)
	if err != nil {
		_ = s.Stop()
		return err
	}
	opener := source.NewOpener(s.config.S3, s.config.HTTPTimeout)
	s.syncer = syncer.New(
		syncer.Config{Paths: s.config.SyncPaths, Encoding: apiCfg.Encoding},
		opener,
		ddl.NewExtractor(lx, ddl.WithLogger(logger.With("component", "ddl"))),
		s.store,
	)
	if err := s.syncer.Start(ctx, s.config.SyncSchedule); err != nil {
		_ = s.Stop()
		return fmt.Errorf("start sync: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	var firstErr error

	if s.syncer != nil {
		s.syncer.Stop()
	}

	if s.api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.api.Stop(ctx); err != nil {
			firstErr = err
		}
		cancel()
	}

	s.closeStore()
	return firstErr
}

func (s *Server) closeStore() {
	if s.ownsStore && s.store != nil {
		s.store.Close()
		s.store = nil
	}
}

// Store returns the ledger, or nil when none is configured.
func (s *Server) Store() storage.Store {
	return s.store
}

// APIAddr returns the HTTP API listen address.
func (s *Server) APIAddr() string {
	if s.api != nil {
		return s.api.Addr()
	}
	return ""
}

// Syncing reports whether scheduled syncing is active.
func (s *Server) Syncing() bool {
	return s.syncer != nil && s.syncer.IsRunning()
}
