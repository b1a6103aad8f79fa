package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle passed through use cases as `qx`.
// The concrete type is infra-defined (pgx.Tx for Postgres). Repositories
// must gracefully accept nil (non-transactional path).
type Tx interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via qx. Keeps use-case interfaces clean:
// no transaction types leak out, and repository methods that accept
// `qx any` can detect a tx and use tx-bound Exec/Query or
// SELECT ... FOR UPDATE as needed.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
