package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MacroChain/internal/domain/models"
	drepo "MacroChain/internal/domain/repository"
	pkgcache "MacroChain/pkg/cache"
	applogger "MacroChain/pkg/logger"

	"github.com/google/uuid"
)

const (
	listCachePrefix  = "chains:list"
	listCachePattern = listCachePrefix + ":*"
	// listGenerationKey names the current listing generation. Writers replace
	// it after every save, so a listing read before the save is cached under a
	// generation no reader asks for again.
	listGenerationKey = "chains:generation"
)

// listGeneration returns the current generation, starting a new one when
// none is cached. A fresh generation only costs extra misses.
func listGeneration(ctx context.Context, c pkgcache.Service) (string, error) {
	var gen string
	err := c.Get(ctx, listGenerationKey, &gen)
	if err == nil && gen != "" {
		return gen, nil
	}
	if err != nil && !errors.Is(err, pkgcache.ErrCacheMiss) {
		return "", err
	}
	return nextListGeneration(ctx, c)
}

func nextListGeneration(ctx context.Context, c pkgcache.Service) (string, error) {
	gen := uuid.NewString()
	if err := c.Set(ctx, listGenerationKey, gen, 0); err != nil {
		return "", err
	}
	return gen, nil
}

// invalidateListings retires the current generation, then drops the entries
// cached under it.
func invalidateListings(ctx context.Context, c pkgcache.Service) error {
	if _, err := nextListGeneration(ctx, c); err != nil {
		return fmt.Errorf("next list generation: %w", err)
	}
	return c.DeleteByPattern(ctx, listCachePattern)
}

// ChainQuery serves deduplicated chain listings, optionally through a cache.
type ChainQuery struct {
	chains drepo.ChainStore
	cache  pkgcache.Service
	ttl    time.Duration
	l      *applogger.Logger
}

func NewChainQuery(chains drepo.ChainStore, cache pkgcache.Service, ttl time.Duration) *ChainQuery {
	return &ChainQuery{chains: chains, cache: cache, ttl: ttl, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (q *ChainQuery) SetLogger(l *applogger.Logger) { q.l = l }

// ListChains returns the latest chain per (title, document), newest first.
func (q *ChainQuery) ListChains(ctx context.Context, sourceDocumentID string, limit int) ([]models.CausalChain, error) {
	useCache := q.cache != nil && q.ttl > 0
	var key string

	if useCache {
		gen, err := listGeneration(ctx, q.cache)
		if err != nil {
			q.l.Warn("chain list generation read failed", applogger.Error(err))
			useCache = false
		}
		key = pkgcache.GenerateKeyWithParams(listCachePrefix, gen, sourceDocumentID, limit)
	}

	if useCache {
		var cached []models.CausalChain
		err := q.cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, pkgcache.ErrCacheMiss) {
			q.l.Warn("chain list cache read failed", applogger.String("key", key), applogger.Error(err))
		}
	}

	chains, err := q.chains.List(ctx, drepo.ListFilter{SourceDocumentID: sourceDocumentID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list chains: %w", err)
	}
	if chains == nil {
		chains = []models.CausalChain{}
	}

	if useCache {
		if err := q.cache.Set(ctx, key, chains, q.ttl); err != nil {
			q.l.Warn("chain list cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return chains, nil
}
