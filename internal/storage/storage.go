// Package storage keeps a ledger of DDL scans in PostgreSQL.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/danizen/sqlextras/internal/ddl"
)

var ErrNotFound = errors.New("not found")

var sourceRe = regexp.MustCompile(`^[^\x00-\x1f\x7f]+$`)

// Scan is one extraction run over a source, stored in _sqlextras.scans.
type Scan struct {
	ID          uuid.UUID `json:"id" yaml:"id"`
	Source      string    `json:"source" yaml:"source"`
	Encoding    string    `json:"encoding" yaml:"encoding"`
	Dialect     string    `json:"dialect" yaml:"dialect"`
	Checksum    string    `json:"checksum" yaml:"checksum"`
	ActionCount int       `json:"action_count" yaml:"action_count"`
	ScannedAt   time.Time `json:"scanned_at" yaml:"scanned_at"`
}

// NewScan describes a scan of content read from source.
func NewScan(source, encoding, dialect string, content []byte) *Scan {
	return &Scan{
		ID:        uuid.New(),
		Source:    source,
		Encoding:  encoding,
		Dialect:   dialect,
		Checksum:  Checksum(content),
		ScannedAt: time.Now().UTC(),
	}
}

// Checksum returns the hex SHA-256 of content.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Store defines the interface for the PostgreSQL-backed scan ledger.
type Store interface {
	// Init runs migrations and ensures the _sqlextras schema exists.
	Init(ctx context.Context) error

	// Close releases the connection pool.
	Close()

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// RecordScan stores a scan and its actions in one transaction.
	RecordScan(ctx context.Context, scan *Scan, actions []ddl.Action) error

	GetScan(ctx context.Context, id uuid.UUID) (*Scan, error)

	// LatestScan returns the most recent scan of source.
	LatestScan(ctx context.Context, source string) (*Scan, error)

	// ListScans returns scans newest first, optionally for one source.
	// A limit of zero means no limit.
	ListScans(ctx context.Context, source string, limit int) ([]*Scan, error)

	// ListActions returns the actions of a scan in source order.
	ListActions(ctx context.Context, scanID uuid.UUID) ([]ddl.Action, error)

	// LatestObjects returns the objects touched by the latest scan of source.
	LatestObjects(ctx context.Context, source string) (ddl.ObjectSet, error)
}

// ValidateSource checks if a source location can be recorded.
func ValidateSource(source string) error {
	if source == "" {
		return fmt.Errorf("source cannot be empty")
	}
	if len(source) > 1024 {
		return fmt.Errorf("source too long (max 1024 characters)")
	}
	if !sourceRe.MatchString(source) {
		return fmt.Errorf("source must not contain control characters")
	}
	return nil
}
