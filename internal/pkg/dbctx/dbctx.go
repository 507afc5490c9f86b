package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

type txKey struct{}

// WithTx returns a context whose repository calls run inside tx.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// From recovers the transaction stored by WithTx.
func From(ctx context.Context) (Context, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	if !ok || tx == nil {
		return Context{Ctx: ctx}, false
	}
	return Context{Ctx: ctx, Tx: tx}, true
}
