package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maypok86/otter/v2"
	"golang.org/x/sync/singleflight"

	"github.com/ceyewan/eureka/clog"
	"github.com/ceyewan/eureka/metrics"
	"github.com/ceyewan/eureka/xerrors"
)

// cacheEntry 单个 vip 的缓存记录，app 和 expiresAt 可以无锁读取
type cacheEntry struct {
	app       atomic.Pointer[App]
	expiresAt atomic.Int64 // UnixNano
}

func (e *cacheEntry) stale(now time.Time) bool {
	return now.UnixNano() >= e.expiresAt.Load()
}

// extend expiresAt 只向后移动
func (e *cacheEntry) extend(t time.Time) {
	next := t.UnixNano()
	for {
		cur := e.expiresAt.Load()
		if next <= cur || e.expiresAt.CompareAndSwap(cur, next) {
			return
		}
	}
}

// appCache 按 vip 缓存查询结果，并合并同一 vip 的并发刷新
type appCache struct {
	source Discovery
	ttl    time.Duration
	now    func() time.Time

	// mu 仅保护 entries 中记录的创建
	mu      sync.Mutex
	entries *otter.Cache[string, *cacheEntry]

	// refreshes 按 vip 合并刷新，与 entries 的淘汰无关
	refreshes singleflight.Group

	logger clog.Logger
	inst   *instruments
}

func newAppCache(cfg *Config, source Discovery, logger clog.Logger, inst *instruments) (*appCache, error) {
	entries, err := otter.New(&otter.Options[string, *cacheEntry]{
		MaximumSize:      cfg.MaxEntries,
		ExpiryCalculator: otter.ExpiryAccessing[string, *cacheEntry](cfg.IdleTimeout),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to build entry cache")
	}

	return &appCache{
		source:  source,
		ttl:     cfg.TTL,
		now:     time.Now,
		entries: entries,
		logger:  logger,
		inst:    inst,
	}, nil
}

// entry 返回 vip 对应的记录，不存在时创建一个立即过期的空记录
func (c *appCache) entry(vip string) *cacheEntry {
	if e, ok := c.entries.GetIfPresent(vip); ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.GetIfPresent(vip); ok {
		return e
	}
	e := &cacheEntry{}
	c.entries.Set(vip, e)
	return e
}

// Lookup 返回 vip 的缓存结果，过期时由第一个到达的调用方刷新
//
// 刷新期间到达的同 vip 调用方共享这次刷新的结果，而不是再发起请求；
// 即使记录在刷新期间被淘汰也是如此。刷新不受调用方 ctx 取消的影响，超时由传输层保证。
func (c *appCache) Lookup(ctx context.Context, vip string) (*App, error) {
	if vip == "" {
		return nil, nil
	}

	if e := c.entry(vip); !e.stale(c.now()) {
		c.inst.cacheLookups.Inc(ctx, metrics.L("result", "hit"))
		return e.app.Load(), nil
	}

	v, err, shared := c.refreshes.Do(vip, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), vip)
	})
	if shared {
		c.inst.cacheLookups.Inc(ctx, metrics.L("result", "shared"))
	}
	if err != nil {
		return nil, err
	}
	return v.(*App), nil
}

// refresh 在 refreshes 中执行，同一 vip 同时只有一个
func (c *appCache) refresh(ctx context.Context, vip string) (*App, error) {
	e := c.entry(vip)

	// 上一次刷新可能刚刚完成
	if !e.stale(c.now()) {
		c.inst.cacheLookups.Inc(ctx, metrics.L("result", "hit"))
		return e.app.Load(), nil
	}
	c.inst.cacheLookups.Inc(ctx, metrics.L("result", "refresh"))

	app, err := c.source.Lookup(ctx, vip)
	if err != nil {
		c.logger.ErrorContext(ctx, "refresh failed, keeping previous value",
			clog.String("vip", vip),
			clog.Error(err),
		)
		return nil, err
	}

	if app != nil {
		e.app.Store(app)
	}
	e.extend(c.now().Add(c.ttl))

	// 刷新期间记录可能已被淘汰，写回保证结果可见
	c.mu.Lock()
	c.entries.Set(vip, e)
	c.mu.Unlock()
	return e.app.Load(), nil
}

// Close 停止缓存的后台任务
func (c *appCache) Close() error {
	c.entries.StopAllGoroutines()
	return nil
}

var _ Client = (*appCache)(nil)
