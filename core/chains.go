package core

import (
	"context"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const chainCatalogCacheKey = "mintflow::chains::v1"

// ChainCache is the read-through cache the chain catalog sits behind.
type ChainCache = repositorycache.CacheService

// ChainCatalog serves the supported chain list, reading through the cache
// when one is configured and falling back to the static list otherwise.
type ChainCatalog struct {
	lister   ChainLister
	cache    ChainCache
	fallback []string
}

func NewChainCatalog(lister ChainLister, cache ChainCache, fallback []string) *ChainCatalog {
	if len(fallback) == 0 {
		fallback = DefaultChains
	}
	return &ChainCatalog{
		lister:   lister,
		cache:    cache,
		fallback: normalizeChains(fallback),
	}
}

func (c *ChainCatalog) ListSupportedChains(ctx context.Context) ([]string, error) {
	if c == nil {
		return append([]string(nil), DefaultChains...), nil
	}
	if c.cache == nil {
		return c.fetch(ctx)
	}
	chains, err := repositorycache.GetOrFetch(ctx, c.cache, chainCatalogCacheKey, c.fetch)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), chains...), nil
}

// Supports reports whether chain is in the catalog, case-insensitively.
func (c *ChainCatalog) Supports(ctx context.Context, chain string) (bool, error) {
	chain = strings.ToUpper(strings.TrimSpace(chain))
	if chain == "" {
		return false, nil
	}
	chains, err := c.ListSupportedChains(ctx)
	if err != nil {
		return false, err
	}
	for _, candidate := range chains {
		if candidate == chain {
			return true, nil
		}
	}
	return false, nil
}

func (c *ChainCatalog) Invalidate(ctx context.Context) error {
	if c == nil || c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, chainCatalogCacheKey)
}

func (c *ChainCatalog) fetch(ctx context.Context) ([]string, error) {
	if c.lister == nil {
		return append([]string(nil), c.fallback...), nil
	}
	chains, err := c.lister.ListSupportedChains(ctx)
	if err != nil {
		return nil, err
	}
	chains = normalizeChains(chains)
	if len(chains) == 0 {
		return append([]string(nil), c.fallback...), nil
	}
	return chains, nil
}

func normalizeChains(chains []string) []string {
	out := make([]string, 0, len(chains))
	seen := map[string]struct{}{}
	for _, chain := range chains {
		chain = strings.ToUpper(strings.TrimSpace(chain))
		if chain == "" {
			continue
		}
		if _, ok := seen[chain]; ok {
			continue
		}
		seen[chain] = struct{}{}
		out = append(out, chain)
	}
	return out
}
