package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danizen/sqlextras/internal/ddl"
)

const schemaName = "_sqlextras"

// PgStore implements Store using a PostgreSQL connection pool.
type PgStore struct {
	pool *pgxpool.Pool
}

// New creates a new PgStore from a connection string. A non-positive
// maxConns or connectTimeout keeps the pgx default.
func New(ctx context.Context, connString string, maxConns int, connectTimeout time.Duration) (*PgStore, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse ledger url: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	if connectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = connectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}
	return &PgStore{pool: pool}, nil
}

func (s *PgStore) Init(ctx context.Context) error {
	return runMigrations(ctx, s.pool)
}

func (s *PgStore) Close() {
	s.pool.Close()
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Scans ---

func (s *PgStore) RecordScan(ctx context.Context, scan *Scan, actions []ddl.Action) error {
	if err := ValidateSource(scan.Source); err != nil {
		return err
	}
	scan.ActionCount = len(actions)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // rollback after commit is a no-op

	_, err = tx.Exec(ctx,
		`INSERT INTO _sqlextras.scans (id, source, encoding, dialect, checksum, action_count, scanned_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		scan.ID, scan.Source, scan.Encoding, scan.Dialect, scan.Checksum, scan.ActionCount, scan.ScannedAt)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	if len(actions) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{schemaName, "scan_actions"},
			[]string{"scan_id", "ordinal", "action", "object_type", "object_name"},
			pgx.CopyFromSlice(len(actions), func(i int) ([]any, error) {
				a := actions[i]
				return []any{scan.ID, i, a.Action(), a.Object().Type(), a.Object().Name()}, nil
			}))
		if err != nil {
			return fmt.Errorf("insert scan actions: %w", err)
		}
	}

	return tx.Commit(ctx)
}

const scanColumns = `id, source, encoding, dialect, checksum, action_count, scanned_at`

func scanRow(row pgx.Row) (*Scan, error) {
	sc := &Scan{}
	err := row.Scan(&sc.ID, &sc.Source, &sc.Encoding, &sc.Dialect, &sc.Checksum, &sc.ActionCount, &sc.ScannedAt)
	return sc, err
}

func (s *PgStore) GetScan(ctx context.Context, id uuid.UUID) (*Scan, error) {
	sc, err := scanRow(s.pool.QueryRow(ctx,
		`SELECT `+scanColumns+` FROM _sqlextras.scans WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("scan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return sc, nil
}

func (s *PgStore) LatestScan(ctx context.Context, source string) (*Scan, error) {
	sc, err := scanRow(s.pool.QueryRow(ctx,
		`SELECT `+scanColumns+` FROM _sqlextras.scans
		 WHERE source = $1 ORDER BY scanned_at DESC LIMIT 1`, source))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("scan of %q: %w", source, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest scan: %w", err)
	}
	return sc, nil
}

func (s *PgStore) ListScans(ctx context.Context, source string, limit int) ([]*Scan, error) {
	query, args := listScansQuery(source, limit)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var scans []*Scan
	for rows.Next() {
		sc, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		scans = append(scans, sc)
	}
	return scans, rows.Err()
}

// listScansQuery builds the ListScans query for an optional source filter and limit.
func listScansQuery(source string, limit int) (string, []any) {
	var b strings.Builder
	var args []any
	b.WriteString(`SELECT ` + scanColumns + ` FROM _sqlextras.scans`)
	if source != "" {
		args = append(args, source)
		fmt.Fprintf(&b, ` WHERE source = $%d`, len(args))
	}
	b.WriteString(` ORDER BY scanned_at DESC`)
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	return b.String(), args
}

func (s *PgStore) ListActions(ctx context.Context, scanID uuid.UUID) ([]ddl.Action, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT action, object_type, object_name
		 FROM _sqlextras.scan_actions WHERE scan_id = $1 ORDER BY ordinal`, scanID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []ddl.Action
	for rows.Next() {
		var action, objectType, objectName string
		if err := rows.Scan(&action, &objectType, &objectName); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, ddl.NewAction(action, ddl.NewObject(objectType, objectName)))
	}
	return actions, rows.Err()
}

func (s *PgStore) LatestObjects(ctx context.Context, source string) (ddl.ObjectSet, error) {
	sc, err := s.LatestScan(ctx, source)
	if err != nil {
		return nil, err
	}
	actions, err := s.ListActions(ctx, sc.ID)
	if err != nil {
		return nil, err
	}
	return ddl.ObjectsOf(actions), nil
}
