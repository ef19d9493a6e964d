package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type txContextKey struct{}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx. Repositories query
// through it instead of their pool field directly so a request that opened
// a tenant-scoped transaction keeps using that same transaction end to end.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx returns a context carrying tx as the connection every repository
// call within it should use. set_config(..., true)'s is_local=true setting
// only lives for the transaction it was set on, so the transaction that ran
// it must be the same one every later query in the request runs against —
// otherwise the RLS session variable reverts before those queries execute.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// dbFromContext returns the context's open transaction if one was set by
// WithTx, falling back to pool for requests that never go through
// TenantMiddleware (cross-tenant system-admin routes, background jobs).
func dbFromContext(ctx context.Context, pool DBTX) DBTX {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}
