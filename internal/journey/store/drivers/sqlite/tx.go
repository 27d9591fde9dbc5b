package sqlite

import (
	"context"
	"database/sql"

	"github.com/tabservice/journeyd/internal/journey/store"
)

// txStore scopes every repository to a single transaction.
type txStore struct {
	Store
	tx *sql.Tx
}

var _ store.Tx = (*txStore)(nil)

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Tx rejects nested transactions; SQLite has no savepoint support here.
func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return fn(t)
}

// ApplyMigrations is not valid inside a transaction.
func (t *txStore) ApplyMigrations() error { return sql.ErrTxDone }

func (t *txStore) Close() error { return nil }
