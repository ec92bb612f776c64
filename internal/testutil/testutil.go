// Package testutil holds helpers shared by tests: database guards for
// integration tests and an in-memory store for unit tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fdcollector/fdc/internal/migrate"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema rolls every migration back and applies them again, leaving
// empty tables.
func ResetSchema(ctx context.Context, databaseURL string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	migrations, err := migrate.Load(os.DirFS(filepath.Join(root, "migrations")))
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	db, err := migrate.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	m := migrate.New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := m.Down(ctx, migrations, 0); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	if _, err := m.Up(ctx, migrations); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// ProjectRoot returns the repository root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", "..")), nil
}
