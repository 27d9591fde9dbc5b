// Package sqlite implements the journey store on top of a SQLite
// database using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tabservice/journeyd/internal/journey/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the repositories
// can run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed implementation of store.Store.
type Store struct {
	db *sql.DB
	q  querier
}

var _ store.Store = (*Store)(nil)

// New opens (or creates) the SQLite database at path and returns a
// ready Store. Use ":memory:" for an ephemeral database in tests.
func New(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Concurrent writers deadlock the driver otherwise.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{db: db, q: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Tx begins a transaction. The returned store routes every repository
// call through the transaction until Commit or Rollback.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &txStore{Store: Store{db: s.db, q: tx}, tx: tx}, nil
}

// WithTx runs fn inside a transaction, committing on nil and rolling
// back on error.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Clients() store.Clients                 { return &clientRepo{q: s.q} }
func (s *Store) Journeys() store.Journeys               { return &journeyRepo{q: s.q} }
func (s *Store) McpFlows() store.McpFlows               { return &mcpFlowRepo{q: s.q} }
func (s *Store) ConnectionFlows() store.ConnectionFlows { return &connectionFlowRepo{q: s.q} }
func (s *Store) Servers() store.Servers                 { return &serverRepo{q: s.q} }
func (s *Store) Connections() store.Connections         { return &connectionRepo{q: s.q} }
func (s *Store) ScopeMappings() store.ScopeMappings     { return &scopeMappingRepo{q: s.q} }
func (s *Store) RefreshTokens() store.RefreshTokens     { return &refreshTokenRepo{q: s.q} }
func (s *Store) SigningKeys() store.SigningKeys         { return &signingKeyRepo{q: s.q} }
func (s *Store) Users() store.Users                     { return &userRepo{q: s.q} }

// mapConflict converts unique-constraint violations into the store's
// sentinel. The modernc driver exposes no typed error for this.
func mapConflict(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

// mapNotFound converts the driver's no-rows sentinel into the store's.
func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// checkAffected enforces optimistic-concurrency updates: zero rows
// touched means the row either vanished or its version moved on.
func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrStaleRow
	}
	return nil
}

func joinList(vals []string) string { return strings.Join(vals, " ") }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return nil
	}
	return parts
}

func toUnix(t time.Time) int64 { return t.UTC().Unix() }

func fromUnix(v int64) time.Time { return time.Unix(v, 0).UTC() }

func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func fromNullUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnix(v.Int64)
	return &t
}
