package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle threaded through repository calls.
// The concrete type is infra-defined (pgx.Tx for Postgres); repositories must
// gracefully accept NoTX and fall back to their pool.
type Tx interface{}

// NoTX marks a non-transactional repository call.
var NoTX Tx

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via tx. It keeps transaction types out of the
// use-case interfaces while still letting the lifecycle manager make its
// insert-subscription + flip-pending-status pair atomic.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
