package testkit

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/eureka/discovery"
)

// StaticDiscovery 返回预置结果的数据源，并记录每个 vip 的调用次数
//
// 可以通过 discovery.WithClient 注入到缓存中。
type StaticDiscovery struct {
	mu    sync.Mutex
	apps  map[string]*discovery.App
	errs  map[string]error
	calls map[string]int
	delay time.Duration
}

// NewStaticDiscovery 创建一个没有任何预置结果的数据源
func NewStaticDiscovery() *StaticDiscovery {
	return &StaticDiscovery{
		apps:  make(map[string]*discovery.App),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// Set 设置 vip 的查询结果，app 为 nil 表示查询失败
func (s *StaticDiscovery) Set(vip string, app *discovery.App) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[vip] = app
	delete(s.errs, vip)
}

// SetError 让 vip 的查询返回错误
func (s *StaticDiscovery) SetError(vip string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[vip] = err
}

// SetDelay 设置每次查询的耗时，用于构造并发场景
func (s *StaticDiscovery) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls 返回 vip 被查询的次数
func (s *StaticDiscovery) Calls(vip string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[vip]
}

// Lookup 实现 discovery.Discovery
func (s *StaticDiscovery) Lookup(ctx context.Context, vip string) (*discovery.App, error) {
	s.mu.Lock()
	s.calls[vip]++
	app, err, delay := s.apps[vip], s.errs[vip], s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return app, nil
}

var _ discovery.Discovery = (*StaticDiscovery)(nil)
