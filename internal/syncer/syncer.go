// Package syncer rescans configured SQL sources on a schedule and records the
// ones whose content changed in the scan ledger.
package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/danizen/sqlextras/internal/ddl"
	"github.com/danizen/sqlextras/internal/lexer"
	"github.com/danizen/sqlextras/internal/storage"
	"github.com/danizen/sqlextras/pkg/logger"
)

// scheduleParser accepts five or six cron fields, the first of six being
// seconds, plus descriptors such as "@every 15m".
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a schedule expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	return scheduleParser.Parse(spec)
}

// Opener resolves source locations. *source.Opener implements it.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	Expand(ctx context.Context, location string) ([]string, error)
}

// Config holds syncer configuration.
type Config struct {
	Paths    []string
	Encoding string
}

// Report summarizes one sync run.
type Report struct {
	Scanned   int `json:"scanned" yaml:"scanned"`
	Recorded  int `json:"recorded" yaml:"recorded"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Syncer scans sources and records changed ones.
type Syncer struct {
	config    Config
	opener    Opener
	extractor *ddl.Extractor
	store     storage.Store
	log       *log.Logger

	runMu   sync.Mutex // serializes runs
	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// New creates a syncer.
func New(cfg Config, opener Opener, extractor *ddl.Extractor, store storage.Store) *Syncer {
	if cfg.Encoding == "" {
		cfg.Encoding = lexer.DefaultEncoding
	}
	return &Syncer{
		config:    cfg,
		opener:    opener,
		extractor: extractor,
		store:     store,
		log:       logger.With("component", "sync"),
	}
}

// RunOnce scans every configured source once. Per-source failures are counted
// and logged; only cancellation aborts the run.
func (s *Syncer) RunOnce(ctx context.Context) (Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	var report Report
	for _, path := range s.config.Paths {
		locations, err := s.opener.Expand(ctx, path)
		if err != nil {
			report.Failed++
			s.log.Error("expand source", "path", path, "err", err)
			continue
		}
		for _, loc := range locations {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Scanned++
			recorded, err := s.syncOne(ctx, loc)
			switch {
			case err != nil:
				report.Failed++
				s.log.Error("sync source", "source", loc, "err", err)
			case recorded:
				report.Recorded++
			default:
				report.Unchanged++
			}
		}
	}

	s.log.Info("sync finished",
		"scanned", report.Scanned,
		"recorded", report.Recorded,
		"unchanged", report.Unchanged,
		"failed", report.Failed,
	)
	return report, nil
}

// syncOne records loc unless its latest scan has the same checksum.
func (s *Syncer) syncOne(ctx context.Context, loc string) (bool, error) {
	rc, err := s.opener.Open(ctx, loc)
	if err != nil {
		return false, err
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return false, fmt.Errorf("read source: %w", err)
	}

	dialect := string(s.extractor.Lexer().Dialect())
	scan := storage.NewScan(loc, s.config.Encoding, dialect, content)

	latest, err := s.store.LatestScan(ctx, loc)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("latest scan: %w", err)
	case latest.Checksum == scan.Checksum && latest.Dialect == dialect && latest.Encoding == scan.Encoding:
		s.log.Debug("source unchanged", "source", loc)
		return false, nil
	}

	actions, err := s.extractor.ExtractActions(bytes.NewReader(content), s.config.Encoding)
	if err != nil {
		return false, err
	}
	if err := s.store.RecordScan(ctx, scan, actions); err != nil {
		return false, fmt.Errorf("record scan: %w", err)
	}
	s.log.Info("recorded scan", "source", loc, "id", scan.ID, "actions", len(actions))
	return true, nil
}

// Start runs RunOnce on the given schedule until Stop is called. Runs that
// would overlap a still-running one are skipped.
func (s *Syncer) Start(ctx context.Context, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("syncer already running")
	}

	cronLog := cron.PrintfLogger(s.log)
	c := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sync interrupted", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.log.Info("starting sync", "schedule", schedule, "paths", len(s.config.Paths))
	c.Start()
	s.cron = c
	s.running = true
	return nil
}

// Stop stops the schedule and waits for a running sync to finish.
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
}

// IsRunning reports whether a schedule is active.
func (s *Syncer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
