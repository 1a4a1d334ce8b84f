package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/cache"
	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/store"
)

func orgCacheKey(id string) string { return "org:" + id }

// Organization resolves an organization profile, reading through the cache.
// Cache failures fall back to the store.
func (p *Pipeline) Organization(ctx context.Context, id string) (*model.Organization, error) {
	key := orgCacheKey(id)
	org, ok, err := cache.GetJSON[model.Organization](ctx, p.cache, key)
	if err != nil {
		zap.L().Warn("pipeline: organization cache read failed", zap.String("organization_id", id), zap.Error(err))
	}
	if ok {
		return org, nil
	}

	org, err = p.store.GetOrganization(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrOrganizationNotFound, "organization %s", id)
		}
		return nil, eris.Wrapf(err, "pipeline: load organization %s", id)
	}
	if err := cache.SetJSON(ctx, p.cache, key, org, p.orgTTL); err != nil {
		zap.L().Warn("pipeline: organization cache write failed", zap.String("organization_id", id), zap.Error(err))
	}
	return org, nil
}

// InvalidateOrganization drops a cached profile after it changes.
func (p *Pipeline) InvalidateOrganization(ctx context.Context, id string) error {
	return eris.Wrap(p.cache.Invalidate(ctx, orgCacheKey(id)), "pipeline: invalidate organization")
}
