// Package migrations holds the schema history. Each migration file
// registers itself from init(); its version is the numeric prefix of the
// file name.
package migrations

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
)

// Dialect renders the column types that differ between Postgres and SQLite.
type Dialect struct {
	Postgres bool
}

func DialectOf(db *dbx.DB) Dialect {
	return Dialect{Postgres: db.DriverName() == "postgres"}
}

func (d Dialect) PrimaryKey() string {
	if d.Postgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d Dialect) Money() string {
	if d.Postgres {
		return "NUMERIC(10,2)"
	}
	// SQLite has no exact decimal type; amounts are kept as canonical text.
	return "TEXT"
}

func (d Dialect) Timestamp() string {
	if d.Postgres {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}

type MigrationFunc func(db dbx.Builder, d Dialect) error

type Migration struct {
	Version int64
	Name    string
	Up      MigrationFunc
	Down    MigrationFunc
}

var registry []Migration

// Register adds the calling file's migration.
func Register(up, down MigrationFunc) {
	_, path, _, _ := runtime.Caller(1)
	name := strings.TrimSuffix(filepath.Base(path), ".go")

	prefix, _, _ := strings.Cut(name, "_")
	version, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		panic(fmt.Sprintf("migrations: file %s has no numeric version prefix", name))
	}

	registry = append(registry, Migration{Version: version, Name: name, Up: up, Down: down})
	sort.Slice(registry, func(i, j int) bool { return registry[i].Version < registry[j].Version })
}

// All returns the registered migrations in version order.
func All() []Migration {
	out := make([]Migration, len(registry))
	copy(out, registry)
	return out
}

func ensureHistory(ctx context.Context, db *dbx.DB) error {
	_, err := db.NewQuery(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at ` + DialectOf(db).Timestamp() + ` NOT NULL
	)`).WithContext(ctx).Execute()
	return err
}

func applied(ctx context.Context, db *dbx.DB) (map[int64]bool, error) {
	var rows []struct {
		Version int64 `db:"version"`
	}
	if err := db.NewQuery("SELECT version FROM schema_migrations").WithContext(ctx).All(&rows); err != nil {
		return nil, err
	}
	done := make(map[int64]bool, len(rows))
	for _, r := range rows {
		done[r.Version] = true
	}
	return done, nil
}

// Up applies every pending migration, each in its own transaction, and
// returns the names of those applied.
func Up(ctx context.Context, db *dbx.DB) ([]string, error) {
	if err := ensureHistory(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations: history table: %w", err)
	}
	done, err := applied(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("migrations: read history: %w", err)
	}

	d := DialectOf(db)
	var names []string
	for _, m := range All() {
		if done[m.Version] {
			continue
		}

		err := db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
			if err := m.Up(tx, d); err != nil {
				return err
			}
			_, err := tx.NewQuery("INSERT INTO schema_migrations (version, name, applied_at) VALUES ({:version}, {:name}, {:at})").
				Bind(dbx.Params{"version": m.Version, "name": m.Name, "at": time.Now().UTC()}).
				WithContext(ctx).
				Execute()
			return err
		})
		if err != nil {
			return names, fmt.Errorf("migrations: apply %s: %w", m.Name, err)
		}

		slog.Info("applied migration", "name", m.Name)
		names = append(names, m.Name)
	}
	return names, nil
}

// Down reverts the most recently applied migration. It returns an empty
// name when nothing is applied.
func Down(ctx context.Context, db *dbx.DB) (string, error) {
	if err := ensureHistory(ctx, db); err != nil {
		return "", fmt.Errorf("migrations: history table: %w", err)
	}
	done, err := applied(ctx, db)
	if err != nil {
		return "", fmt.Errorf("migrations: read history: %w", err)
	}

	all := All()
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if !done[m.Version] {
			continue
		}

		err := db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
			if err := m.Down(tx, DialectOf(db)); err != nil {
				return err
			}
			_, err := tx.NewQuery("DELETE FROM schema_migrations WHERE version = {:version}").
				Bind(dbx.Params{"version": m.Version}).
				WithContext(ctx).
				Execute()
			return err
		})
		if err != nil {
			return "", fmt.Errorf("migrations: revert %s: %w", m.Name, err)
		}

		slog.Info("reverted migration", "name", m.Name)
		return m.Name, nil
	}
	return "", nil
}

func exec(db dbx.Builder, statements ...string) error {
	for _, s := range statements {
		if _, err := db.NewQuery(s).Execute(); err != nil {
			return err
		}
	}
	return nil
}
