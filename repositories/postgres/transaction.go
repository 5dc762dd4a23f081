package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docuchat/backend/repositories"
	"go.uber.org/zap"
)

type txKey struct{}

// Executor is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories run their statements through it so the same method works
// inside and outside a transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetExecutor resolves the executor for a call: the transaction carried
// by the context if one is present, the plain connection otherwise.
func GetExecutor(ctx context.Context, db *DB) Executor {
	if tx, ok := GetTransactionFromContext(ctx); ok {
		if pgTx, ok := tx.(*Transaction); ok {
			return pgTx.tx
		}
	}
	return db.DB
}

// GetTransactionFromContext returns the transaction stored by
// InTransaction, if the context carries one.
func GetTransactionFromContext(ctx context.Context) (repositories.Transaction, bool) {
	tx, ok := ctx.Value(txKey{}).(repositories.Transaction)
	return tx, ok
}

// TransactionManager starts transactions on the shared connection pool.
type TransactionManager struct {
	db     *DB
	logger *zap.Logger
}

func NewTransactionManager(db *DB, logger *zap.Logger) repositories.TransactionManager {
	return &TransactionManager{db: db, logger: logger}
}

// Begin opens a transaction. The caller owns Commit/Rollback.
func (tm *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	sqlTx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Transaction{tx: sqlTx, ctx: ctx, logger: tm.logger}, nil
}

// InTransaction runs fn inside a transaction. The context passed to fn
// carries the transaction, so repository calls made with it execute on
// the same transaction. A nil error from fn commits; any error rolls
// back and is returned unchanged.
func (tm *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := tm.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx), tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			tm.logger.Error("rollback failed",
				zap.Error(rbErr),
				zap.NamedError("cause", err))
		}
		return err
	}

	return tx.Commit()
}

// Transaction wraps a *sql.Tx behind the repositories.Transaction
// interface.
type Transaction struct {
	tx     *sql.Tx
	ctx    context.Context
	logger *zap.Logger
}

func (t *Transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	t.logger.Debug("transaction committed")
	return nil
}

// Rollback aborts the transaction. Rolling back an already-finished
// transaction is a no-op.
func (t *Transaction) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		if err == sql.ErrTxDone {
			return nil
		}
		return fmt.Errorf("rollback transaction: %w", err)
	}
	t.logger.Debug("transaction rolled back")
	return nil
}

func (t *Transaction) Context() context.Context {
	return t.ctx
}
