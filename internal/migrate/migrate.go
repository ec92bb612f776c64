// Package migrate applies the SQL files in migrations/ through database/sql.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	// Registers the "postgres" driver.
	_ "github.com/lib/pq"
)

// ErrBadFilename indicates a file in the migrations directory does not
// follow the NNNNNN_name.(up|down).sql convention.
var ErrBadFilename = errors.New("bad migration filename")

// Migration is one versioned pair of up/down scripts.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Open connects to PostgreSQL with the lib/pq driver.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Load reads and orders migrations from fsys.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, name, direction, err := parseFilename(entry.Name())
		if err != nil {
			return nil, err
		}

		body, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %06d_%s has no up script", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func parseFilename(filename string) (version int, name, direction string, err error) {
	base := strings.TrimSuffix(path.Base(filename), ".sql")

	switch {
	case strings.HasSuffix(base, ".up"):
		direction = "up"
	case strings.HasSuffix(base, ".down"):
		direction = "down"
	default:
		return 0, "", "", fmt.Errorf("%w: %s", ErrBadFilename, filename)
	}
	base = strings.TrimSuffix(base, "."+direction)

	num, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", "", fmt.Errorf("%w: %s", ErrBadFilename, filename)
	}
	version, err = strconv.Atoi(num)
	if err != nil || version <= 0 {
		return 0, "", "", fmt.Errorf("%w: %s", ErrBadFilename, filename)
	}

	return version, name, direction, nil
}

// Migrator applies migrations and records applied versions in
// schema_migrations.
type Migrator struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Migrator.
func New(db *sql.DB, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, logger: logger}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions[v] = true
	}
	return versions, rows.Err()
}

// Up applies every pending migration in version order. Each migration runs
// in its own transaction. It returns the number applied.
func (m *Migrator) Up(ctx context.Context, migrations []Migration) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range migrations {
		if done[mig.Version] {
			continue
		}
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, mig.Version)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("apply %06d_%s: %w", mig.Version, mig.Name, err)
		}
		m.logger.Info("migration applied", slog.Int("version", mig.Version), slog.String("name", mig.Name))
		count++
	}

	return count, nil
}

// Down reverts up to steps applied migrations, newest first. A steps value
// of zero or less reverts all of them.
func (m *Migrator) Down(ctx context.Context, migrations []Migration, steps int) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := len(migrations) - 1; i >= 0; i-- {
		if steps > 0 && count == steps {
			break
		}
		mig := migrations[i]
		if !done[mig.Version] {
			continue
		}
		if mig.Down == "" {
			return count, fmt.Errorf("migration %06d_%s has no down script", mig.Version, mig.Name)
		}
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.Down); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("revert %06d_%s: %w", mig.Version, mig.Name, err)
		}
		m.logger.Info("migration reverted", slog.Int("version", mig.Version), slog.String("name", mig.Name))
		count++
	}

	return count, nil
}

func (m *Migrator) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
