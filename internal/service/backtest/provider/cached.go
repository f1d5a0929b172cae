package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backflow/internal/consts"
	"backflow/internal/model"
	"backflow/pkg/cache"
	"backflow/pkg/logger"

	"github.com/goccy/go-json"
)

// CachedProvider 读穿缓存：命中直接返回，未命中从下游加载后回写。
// 缓存读写失败只记录日志，不影响回测。
type CachedProvider struct {
	next  Provider
	store cache.Store
	ttl   time.Duration
}

func NewCachedProvider(next Provider, store cache.Store, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = consts.BarCacheTTL
	}
	return &CachedProvider{next: next, store: store, ttl: ttl}
}

func barsKey(symbol string, from, to time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s", consts.BarCachePrefix, symbol, from.Format(time.DateOnly), to.Format(time.DateOnly))
}

func (p *CachedProvider) Series(ctx context.Context, symbol string, from, to time.Time) (*model.Series, error) {
	key := barsKey(symbol, from, to)
	data, err := p.store.Get(ctx, key)
	switch {
	case err == nil:
		var s model.Series
		if err := json.Unmarshal(data, &s); err == nil {
			return &s, nil
		}
		logger.Warn("discard corrupt cached series", logger.Pair("key", key))
	case !errors.Is(err, cache.ErrMiss):
		logger.Warn("bar cache read failed", logger.Pair("key", key), logger.Pair("err", err.Error()))
	}

	s, err := p.next.Series(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(s); err == nil {
		if err := p.store.Set(ctx, key, data, p.ttl); err != nil {
			logger.Warn("bar cache write failed", logger.Pair("key", key), logger.Pair("err", err.Error()))
		}
	}
	return s, nil
}
