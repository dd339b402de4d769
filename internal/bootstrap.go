package internal

import (
	"context"
	"errors"
	"fmt"
	"strd/internal/catalog"
	"strd/internal/identity"
	"strd/internal/models"
	"strd/internal/providers"
	"strd/internal/structures"
	"strd/internal/usage"
)

// Bootstrap prepares shared state before a process starts serving.
type Bootstrap struct {
	catalog  *catalog.Catalog
	resolver *identity.Resolver
	usage    *usage.Aggregator
	cache    providers.CacheProviderInterface
	logger   providers.Logger
	role     string
}

func NewBootstrap(conf *structures.Config, cat *catalog.Catalog, resolver *identity.Resolver, agg *usage.Aggregator, cache providers.CacheProviderInterface, logger providers.Logger) *Bootstrap {
	return &Bootstrap{
		catalog:  cat,
		resolver: resolver,
		usage:    agg,
		cache:    cache,
		logger:   logger,
		role:     conf.Role,
	}
}

// Run registers the configured identities and hooks cache invalidation to
// the daily reset. The monitor also drops usage records of apps removed
// from the catalog since the previous start. An identity conflict aborts startup; other store errors
// are logged and retried implicitly by later lookups.
func (b *Bootstrap) Run(ctx context.Context) error {
	b.usage.Subscribe(func(usage.ResetEvent) {
		b.cache.Clear()
	})

	if err := b.catalog.Register(ctx, b.resolver, b.usage.HasHistory); err != nil {
		if errors.Is(err, models.ErrIdentityConflict) {
			return fmt.Errorf("register apps: %w", err)
		}
		b.logger.Errorf(providers.TypeApp, "Unable to register apps: %s", err)
	}
	b.logger.Infof(providers.TypeApp, "Registered %d apps", len(b.catalog.Apps()))

	// Usage records have a single writer.
	if b.role == structures.RoleMonitor {
		b.prune(ctx)
	}
	return nil
}

func (b *Bootstrap) prune(ctx context.Context) {
	apps := b.catalog.Apps()
	ids := make([]string, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.LogicalID)
	}
	removed, err := b.usage.Prune(ctx, ids)
	if err != nil {
		b.logger.Errorf(providers.TypeApp, "Unable to prune usage records: %s", err)
	}
	for _, id := range removed {
		b.logger.Infof(providers.TypeApp, "Removed usage record of %s", id)
	}
}
