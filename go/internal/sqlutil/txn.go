package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReadOnly is the option set for transactions that only read.
var ReadOnly = &sql.TxOptions{ReadOnly: true}

// Run executes fn against queries bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise, including
// when fn panics. opts may be nil for the driver defaults.
func Run[T any](
	ctx context.Context,
	db *sql.DB,
	opts *sql.TxOptions,
	newQueries func(*sql.Tx) *T,
	fn func(q *T) error,
) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(newQueries(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
