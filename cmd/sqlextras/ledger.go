package main

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/danizen/sqlextras/internal/config"
	"github.com/danizen/sqlextras/internal/server"
	"github.com/danizen/sqlextras/internal/storage"
	"github.com/danizen/sqlextras/internal/syncer"
	"github.com/danizen/sqlextras/internal/ui"
)

var recordCmd = &cobra.Command{
	Use:   "record <source>...",
	Short: "Extract SQL sources and record the scans in the ledger",
	Example: `  sqlextras record schema.sql
  sqlextras record s3://bucket/release/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecord,
}

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "List recorded scans, newest first",
	Example: `  sqlextras scans
  sqlextras scans --source schema.sql -n 5`,
	Args: cobra.NoArgs,
	RunE: runScans,
}

var showCmd = &cobra.Command{
	Use:   "show <scan-id>",
	Short: "Show a recorded scan and its actions",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run scheduled syncs",
	Long: `Serve the extraction API over HTTP. When a ledger is configured the scan
endpoints are enabled, and the sources in sync.paths are rescanned on the
sync.schedule.`,
	Example: `  sqlextras serve
  sqlextras serve --listen 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var syncCmd = &cobra.Command{
	Use:   "sync [source]...",
	Short: "Record sources whose content changed since their last scan",
	Long: `Scan the given sources, or sync.paths from the config, and record those
whose checksum differs from their latest recorded scan. With --watch the
sync repeats on the schedule until interrupted.`,
	Example: `  sqlextras sync
  sqlextras sync migrations/ --watch --schedule "*/5 * * * *"`,
	RunE: runSync,
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	extractor, err := newExtractor()
	if err != nil {
		return err
	}
	opener := newOpener()
	locations, err := expandSources(ctx, opener, args)
	if err != nil {
		return err
	}

	store, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	progress := ui.NewProgress(out, len(locations))
	progress.Start()

	recorded := make([]*storage.Scan, 0, len(locations))
	for _, loc := range locations {
		content, err := readSource(ctx, opener, loc)
		if err != nil {
			progress.Done()
			return err
		}
		actions, err := extractor.ExtractActions(bytes.NewReader(content), cfg.Scan.Encoding)
		if err != nil {
			progress.Done()
			return fmt.Errorf("%s: %w", loc, err)
		}
		scan := storage.NewScan(loc, cfg.Scan.Encoding, string(extractor.Lexer().Dialect()), content)
		if err := store.RecordScan(ctx, scan, actions); err != nil {
			progress.Done()
			return fmt.Errorf("record %s: %w", loc, err)
		}
		recorded = append(recorded, scan)
		progress.Step(loc)
	}
	progress.Done()

	return out.Scans(recorded)
}

func runScans(cmd *cobra.Command, args []string) error {
	store, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	scans, err := store.ListScans(cmd.Context(), scanSource, scanLimit)
	if err != nil {
		return err
	}
	if len(scans) == 0 && !out.Structured() {
		out.Info("No scans recorded")
		return nil
	}
	return out.Scans(scans)
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid scan id %q: %w", args[0], err)
	}

	store, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	scan, err := store.GetScan(cmd.Context(), id)
	if err != nil {
		return err
	}
	actions, err := store.ListActions(cmd.Context(), id)
	if err != nil {
		return err
	}
	return out.Scan(scan, actions)
}

func runServe(cmd *cobra.Command, args []string) error {
	if listenAddr != "" {
		cfg.API.ListenAddr = listenAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	srvCfg, err := server.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	srv := server.New(srvCfg)
	if err := srv.Start(cmd.Context()); err != nil {
		return err
	}

	out.Title("sqlextras")
	out.KeyValue("API", srv.APIAddr())
	auth := "none"
	if cfg.API.JWTSecret != "" {
		auth = "bearer JWT"
	}
	out.KeyValue("Auth", auth)
	if cfg.Ledger.URL != "" {
		out.KeyValue("Ledger", config.RedactURL(cfg.Ledger.URL))
	}
	if srv.Syncing() {
		out.KeyValue("Sync", fmt.Sprintf("%d path(s), %s", len(cfg.Sync.Paths), cfg.Sync.Schedule))
	}
	out.Print("")
	out.Print(ui.Muted.Render("Press Ctrl+C to stop"))

	<-cmd.Context().Done()

	if err := srv.Stop(); err != nil {
		return err
	}
	out.Print("")
	out.Success("Shutdown complete")
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	paths := args
	if len(paths) == 0 {
		paths = cfg.Sync.Paths
	}
	if len(paths) == 0 {
		return fmt.Errorf("nothing to sync: pass sources or set sync.paths")
	}
	if schedule == "" {
		schedule = cfg.Sync.Schedule
	}
	if watch {
		if _, err := syncer.ParseSchedule(schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", schedule, err)
		}
	}

	extractor, err := newExtractor()
	if err != nil {
		return err
	}
	store, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	s := syncer.New(syncer.Config{Paths: paths, Encoding: cfg.Scan.Encoding}, newOpener(), extractor, store)

	report, err := s.RunOnce(ctx)
	if err != nil {
		return err
	}
	if !watch {
		if out.Structured() {
			return out.Data(report)
		}
		out.Success(fmt.Sprintf("Synced %d source(s)", report.Scanned))
		out.KeyValue("Recorded", fmt.Sprint(report.Recorded))
		out.KeyValue("Unchanged", fmt.Sprint(report.Unchanged))
		out.KeyValue("Failed", fmt.Sprint(report.Failed))
		if report.Failed > 0 {
			return fmt.Errorf("%d source(s) failed to sync", report.Failed)
		}
		return nil
	}

	if err := s.Start(ctx, schedule); err != nil {
		return err
	}
	out.Info(fmt.Sprintf("Syncing %d path(s) on %q; press Ctrl+C to stop", len(paths), schedule))
	<-ctx.Done()
	s.Stop()
	out.Success("Sync stopped")
	return nil
}
