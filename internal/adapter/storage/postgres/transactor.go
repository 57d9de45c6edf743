package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// reconcileTxOptions is used for every service transaction. Reconciliation
// takes a row lock with SELECT ... FOR UPDATE, so READ COMMITTED is enough.
var reconcileTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// Transactor implements ports.DBTransactor on the pool.
type Transactor struct {
	pool Pool
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, reconcileTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}
