package discovery

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/eureka/clog"
	"github.com/ceyewan/eureka/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger         clog.Logger
	meter          metrics.Meter
	tracerProvider trace.TracerProvider
	source         Discovery
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 "discovery" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("discovery")
		}
	}
}

// WithMeter 注入指标 Meter
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithTracerProvider 注入 TracerProvider，每次访问注册中心都会产生一个 span
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithClient 使用已构建的数据源代替基于 Config.Host 的 HTTP 客户端
//
// 缓存仍然包裹在数据源之外。
func WithClient(d Discovery) Option {
	return func(o *options) {
		if d != nil {
			o.source = d
		}
	}
}
