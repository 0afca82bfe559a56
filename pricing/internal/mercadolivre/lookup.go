package mercadolivre

import (
	"context"
	"errors"
	"time"

	"precifica/pricing/internal/cache"
	"precifica/pricing/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	CategoriesTTL = 7 * 24 * time.Hour
	FeesTTL       = 24 * time.Hour

	// LookupTimeout bounds one shared upstream call.
	LookupTimeout = 15 * time.Second
)

// API is the part of Client used by FeeLookup.
type API interface {
	Categories(ctx context.Context) ([]Category, error)
	CategoryFees(ctx context.Context, categoryID string) (CategoryFees, error)
}

// FeeLookup caches category lists and category fees. Concurrent misses for
// the same key share one upstream call.
type FeeLookup struct {
	api     API
	cache   cache.Store
	group   singleflight.Group
	timeout time.Duration
	log     *zap.Logger
}

func NewFeeLookup(api API, store cache.Store) *FeeLookup {
	return &FeeLookup{api: api, cache: store, timeout: LookupTimeout, log: logging.Named("ml-lookup")}
}

// shared runs fn once per key for all concurrent callers. fn gets a context
// detached from the caller that started it, so a disconnecting client does
// not fail the other waiters; each caller still returns on its own ctx.
func (l *FeeLookup) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := l.group.DoChan(key, func() (any, error) {
		upstream, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		return fn(upstream)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *FeeLookup) Categories(ctx context.Context) ([]Category, error) {
	const key = "ml:categories"

	var cats []Category
	if err := cache.GetJSON(ctx, l.cache, key, &cats); err == nil {
		return cats, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		l.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err := l.shared(ctx, key, func(ctx context.Context) (any, error) {
		cats, err := l.api.Categories(ctx)
		if err != nil {
			return nil, err
		}
		if err := cache.SetJSON(ctx, l.cache, key, cats, CategoriesTTL); err != nil {
			l.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		return cats, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Category), nil
}

func (l *FeeLookup) CategoryFees(ctx context.Context, categoryID string) (CategoryFees, error) {
	if categoryID == "" {
		return CategoryFees{}, ErrMissingCategory
	}
	key := "ml:fees:" + categoryID

	var fees CategoryFees
	if err := cache.GetJSON(ctx, l.cache, key, &fees); err == nil {
		return fees, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		l.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err := l.shared(ctx, key, func(ctx context.Context) (any, error) {
		fees, err := l.api.CategoryFees(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		// Nothing found is not worth remembering for a day.
		if fees.Classico != nil || fees.Premium != nil {
			if err := cache.SetJSON(ctx, l.cache, key, fees, FeesTTL); err != nil {
				l.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return fees, nil
	})
	if err != nil {
		return CategoryFees{}, err
	}
	return v.(CategoryFees), nil
}
