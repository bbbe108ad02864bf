package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldops/accessctl/repositories"
	"go.uber.org/zap"
)

type txKey struct{}

// TransactionManager runs admin writes and their audit rows atomically.
type TransactionManager struct {
	db     *DB
	logger *zap.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db *DB, logger *zap.Logger) repositories.TransactionManager {
	return &TransactionManager{db: db, logger: logger}
}

// Begin opens a transaction. The returned Transaction's Context carries it,
// so repositories called with that context join it.
func (tm *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	sqlTx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Transaction{tx: sqlTx, logger: tm.logger}
	tx.ctx = context.WithValue(ctx, txKey{}, tx)
	return tx, nil
}

// InTransaction commits when fn returns nil and rolls back on an error or a
// panic. A panic is re-raised after the rollback.
func (tm *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) (err error) {
	tx, err := tm.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx.Context(), tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			tm.logger.Error("failed to rollback transaction",
				zap.Error(rbErr),
				zap.NamedError("cause", err),
			)
		}
		return err
	}

	return tx.Commit()
}

// Transaction is a sql.Tx bound to the context it was started with.
type Transaction struct {
	tx     *sql.Tx
	ctx    context.Context
	logger *zap.Logger
}

func (t *Transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback is a no-op on a transaction that already finished.
func (t *Transaction) Rollback() error {
	err := t.tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return fmt.Errorf("failed to rollback transaction: %w", err)
}

func (t *Transaction) Context() context.Context {
	return t.ctx
}

// Executor is the query surface shared by *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetExecutor returns the transaction carried by ctx, falling back to the pool.
func GetExecutor(ctx context.Context, db *DB) Executor {
	if tx, ok := ctx.Value(txKey{}).(*Transaction); ok {
		return tx.tx
	}
	return db.DB
}
