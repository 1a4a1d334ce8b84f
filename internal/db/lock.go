package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// AdvisoryXactLock takes a transaction-scoped advisory lock on key. The lock
// is released when tx commits or rolls back.
func AdvisoryXactLock(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return eris.Wrapf(err, "db: advisory lock %q", key)
	}
	return nil
}
