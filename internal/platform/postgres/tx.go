package postgres

import (
	"context"

	"gorm.io/gorm"
)

type txContextKey struct{}

// TxManager runs multi-repository units of work in a single database
// transaction. The transactional handle travels in the context, so
// repositories built on DB(ctx) join the caller's transaction without
// knowing about each other.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager wraps the base connection.
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// RunInTx executes fn inside a transaction. A nested call joins the
// existing transaction through a savepoint, which gorm handles.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	handle := m.DB(ctx)
	return handle.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// DB returns the transactional handle carried by ctx, or the base
// connection when no transaction is open.
func (m *TxManager) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return m.db
}

// InTx reports whether ctx carries an open transaction. Layers that
// shortcut around the database (caches) use this to stay consistent
// with the rows the transaction locks.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txContextKey{}).(*gorm.DB)
	return ok
}
