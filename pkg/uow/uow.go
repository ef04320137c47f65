// Package uow provides the scoped unit-of-work used by every write path in
// go-activity. Operations accept an optional bun.IDB: a caller composing
// several operations into one transaction passes its own handle, otherwise
// the operation acquires a transaction, performs its writes, and releases it
// on exit, committing on normal return and rolling back on error.
package uow

import (
	"context"

	"github.com/goliatone/go-activity/pkg/types"
	"github.com/uptrace/bun"
)

// Run executes fn against the caller-supplied handle when one is given.
// With a nil handle it opens a transaction on db and scopes fn inside it.
func Run(ctx context.Context, db *bun.DB, idb bun.IDB, fn func(context.Context, bun.IDB) error) error {
	if idb != nil {
		return fn(ctx, idb)
	}
	if db == nil {
		return types.ErrMissingDB
	}
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}
