//go:build integration

package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/danizen/sqlextras/internal/ddl"
	"github.com/danizen/sqlextras/internal/storage"
)

func newTestStore(t *testing.T) *storage.PgStore {
	t.Helper()
	ctx := t.Context()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("ledger"),
		postgres.WithUsername("sqlextras"),
		postgres.WithPassword("sqlextras"),
		postgres.BasicWaitStrategies(),
	)
	assert.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	assert.NoError(t, err)

	store, err := storage.New(ctx, connStr, 2, 10*time.Second)
	assert.NoError(t, err)
	t.Cleanup(store.Close)

	assert.NoError(t, store.Init(ctx))
	return store
}

func TestLedger(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	t.Run("init is idempotent", func(t *testing.T) {
		assert.NoError(t, store.Init(ctx))
		assert.NoError(t, store.Ping(ctx))
	})

	actions := []ddl.Action{
		ddl.NewAction("CREATE", ddl.NewObject("TABLE", "A")),
		ddl.NewAction("CREATE", ddl.NewObject("INDEX", "IDX")),
		ddl.NewAction("DROP", ddl.NewObject("TABLE", "A")),
	}

	first := storage.NewScan("schema.sql", "utf-8", "generic", []byte("v1"))
	first.ScannedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	assert.NoError(t, store.RecordScan(ctx, first, actions))
	assert.Equal(t, 3, first.ActionCount)

	second := storage.NewScan("schema.sql", "utf-8", "generic", []byte("v2"))
	second.ScannedAt = second.ScannedAt.Truncate(time.Microsecond)
	assert.NoError(t, store.RecordScan(ctx, second, actions[:1]))

	other := storage.NewScan("other.sql", "latin1", "postgres", []byte("v1"))
	assert.NoError(t, store.RecordScan(ctx, other, nil))

	t.Run("get scan", func(t *testing.T) {
		got, err := store.GetScan(ctx, first.ID)
		assert.NoError(t, err)
		assert.Equal(t, first.Checksum, got.Checksum)
		assert.Equal(t, 3, got.ActionCount)
		assert.True(t, got.ScannedAt.Equal(first.ScannedAt))

		_, err = store.GetScan(ctx, uuid.New())
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("actions keep source order", func(t *testing.T) {
		got, err := store.ListActions(ctx, first.ID)
		assert.NoError(t, err)
		assert.Equal(t, actions, got)
	})

	t.Run("latest scan and objects", func(t *testing.T) {
		latest, err := store.LatestScan(ctx, "schema.sql")
		assert.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)

		objects, err := store.LatestObjects(ctx, "schema.sql")
		assert.NoError(t, err)
		assert.Equal(t, []ddl.Object{ddl.NewObject("TABLE", "A")}, objects.Sorted())

		_, err = store.LatestScan(ctx, "never-scanned.sql")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("list scans", func(t *testing.T) {
		all, err := store.ListScans(ctx, "", 0)
		assert.NoError(t, err)
		assert.Equal(t, 3, len(all))

		bySource, err := store.ListScans(ctx, "schema.sql", 1)
		assert.NoError(t, err)
		assert.Equal(t, 1, len(bySource))
		assert.Equal(t, second.ID, bySource[0].ID)
	})

	t.Run("invalid source is rejected", func(t *testing.T) {
		bad := storage.NewScan("bad\nsource", "utf-8", "generic", nil)
		assert.Error(t, store.RecordScan(ctx, bad, nil))
	})
}
