package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via `tx`.
//
// Keeping the tx handle opaque means use-case interfaces stay clean and
// repository methods can accept either a live transaction or nil (the
// non-transactional path backed by the pool). The concrete type of `tx` is
// infra-defined (pgx.Tx for Postgres).
//
// The redemption engine relies on this: the conditional use-counter update
// and the ledger append must land in the same transaction.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
