package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signal-cli/internal/store"
)

// initStore opens the configured store and brings its schema up to date.
// Callers should defer Close.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
