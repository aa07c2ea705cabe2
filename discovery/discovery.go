// Package discovery 提供 Eureka 风格注册中心的服务发现客户端。
//
// 给定一个 vip（逻辑服务名），Lookup 返回注册中心登记的实例列表，
// App.GetNextAppInstance 从中随机挑选一个 UP 状态的实例：
//
//	client, err := discovery.New(&discovery.Config{
//	    Host: "registry.local:8761",
//	    TTL:  30 * time.Second,
//	}, discovery.WithLogger(logger), discovery.WithMeter(meter))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	app, err := client.Lookup(ctx, "orders")
//	if err != nil {
//	    return err // 只有注册中心返回的正文格式错误时才会出现
//	}
//	if inst := app.GetNextAppInstance(); inst != nil {
//	    call(inst.URL)
//	}
//
// ## 缓存
//
// 每个 vip 的结果缓存 TTL 时长。过期后第一个到达的调用方在自己的 goroutine 中刷新，
// 同一 vip 的其他调用方等待这次刷新，因此每个 TTL 窗口内最多访问注册中心一次。
// 长期未被访问的 vip 会被淘汰，缓存总量受 MaxEntries 限制。
//
// ## 错误
//
// 连接失败、超时和非 200 响应只记录 warn 日志，Lookup 返回 nil 且不报错；
// 缓存保留上一次的结果直到下一个 TTL 窗口。
// 正文格式错误返回 ErrMalformedResponse，缓存记录保持不变，下一次调用会重试。
package discovery

import (
	"context"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ceyewan/eureka/clog"
	"github.com/ceyewan/eureka/metrics"
	"github.com/ceyewan/eureka/xerrors"
)

// Discovery 按 vip 查询实例的数据源
//
// 返回 nil App 表示没有结果（vip 为空或查询失败），零实例的 App 表示已知为空。
type Discovery interface {
	Lookup(ctx context.Context, vip string) (*App, error)
}

// Client 带缓存的服务发现客户端
type Client interface {
	Discovery

	// Close 释放缓存的后台资源
	Close() error
}

// New 创建服务发现客户端
//
// 未通过 WithClient 注入数据源时，cfg.Host 必填。
func New(cfg *Config, opts ...Option) (Client, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}

	opt := &options{
		logger:         clog.Discard(),
		meter:          metrics.Discard(),
		tracerProvider: noop.NewTracerProvider(),
	}
	for _, o := range opts {
		o(opt)
	}

	c.setDefaults()
	if err := c.validate(opt.source == nil); err != nil {
		return nil, err
	}

	inst, err := newInstruments(opt.meter)
	if err != nil {
		return nil, err
	}

	source := opt.source
	if source == nil {
		ep, err := ParseEndpoint(c.Host)
		if err != nil {
			return nil, err
		}
		source = newHTTPClient(&c, ep, opt.logger, opt.tracerProvider, inst)
	}

	cache, err := newAppCache(&c, source, opt.logger, inst)
	if err != nil {
		return nil, xerrors.Wrap(err, "create discovery cache")
	}
	return cache, nil
}
