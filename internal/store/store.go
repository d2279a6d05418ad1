// Package store persists payments, tickets, users and login attempts.
//
// Postgres is the production database and serializes competing purchases
// with SELECT ... FOR UPDATE. SQLite is used for development and tests; its
// pool is pinned to one connection, which serializes transactions instead.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticket-checkout/migrations"
	"ticket-checkout/models"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *dbx.DB

	// lockClause is appended to row reads that must hold the row until commit.
	lockClause string
}

// Open connects using driver "pgx" (or "postgres") or "sqlite".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case "pgx", "postgres":
		sqlDB, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		return connect(ctx, dbx.NewFromDB(sqlDB, "postgres"))

	case "sqlite":
		sqlDB, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
		s, err := connect(ctx, dbx.NewFromDB(sqlDB, "sqlite"))
		if err != nil {
			return nil, err
		}
		if _, err := s.db.NewQuery("PRAGMA foreign_keys = ON").WithContext(ctx).Execute(); err != nil {
			s.Close()
			return nil, fmt.Errorf("store: enable foreign keys: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("store: unsupported driver %q", driver)
}

func connect(ctx context.Context, db *dbx.DB) (*Store, error) {
	if err := db.DB().PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", db.DriverName(), err)
	}
	return New(db), nil
}

func New(db *dbx.DB) *Store {
	s := &Store{db: db}
	if db.DriverName() == "postgres" {
		s.lockClause = " FOR UPDATE"
	}
	return s
}

func (s *Store) DB() *dbx.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.DB().PingContext(ctx)
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	return migrations.Up(ctx, s.db)
}

// Tx is the set of writes that run inside a purchase transaction.
type Tx interface {
	LockTicket(ctx context.Context, id int64) (*models.Ticket, error)
	SaveTicketQuantity(ctx context.Context, t *models.Ticket) error
	CreateTicket(ctx context.Context, t *models.Ticket) error
	SavePayment(ctx context.Context, p *models.Payment) error
}

// RunInTx commits when fn returns nil and rolls back otherwise.
func (s *Store) RunInTx(ctx context.Context, fn func(Tx) error) error {
	return s.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		return fn(&txStore{b: tx, lockClause: s.lockClause})
	})
}

type txStore struct {
	b          dbx.Builder
	lockClause string
}

func (t *txStore) LockTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	return findTicket(ctx, t.b, id, t.lockClause)
}

func (t *txStore) SaveTicketQuantity(ctx context.Context, ticket *models.Ticket) error {
	return saveTicketQuantity(ctx, t.b, ticket)
}

func (t *txStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	return createTicket(ctx, t.b, ticket)
}

func (t *txStore) SavePayment(ctx context.Context, p *models.Payment) error {
	return savePayment(ctx, t.b, p)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// OpenInMemory opens a migrated, private in-memory SQLite database.
func OpenInMemory(ctx context.Context, name string) (*Store, error) {
	s, err := Open(ctx, "sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		return nil, err
	}
	if _, err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
