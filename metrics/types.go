// Package metrics 提供基于 OpenTelemetry 的指标组件，通过 Prometheus 格式暴露。
//
// 快速开始：
//
//	meter, err := metrics.New(&metrics.Config{
//	    Enabled:     true,
//	    ServiceName: "eureka-sidecar",
//	})
//	defer meter.Shutdown(ctx)
//
//	lookups, _ := meter.Counter("eureka_lookups_total", "服务查找次数")
//	lookups.Inc(ctx, metrics.L("result", "hit"))
//
//	// 挂载到 HTTP 路由
//	mux.Handle("/metrics", meter.Handler())
//
// 未启用时 New 返回 noop 实现，组件默认使用 Discard()。
package metrics

import (
	"context"
	"net/http"
)

// Counter 只增不减的累计值，例如请求总数、错误次数
type Counter interface {
	// Inc 将计数器增加 1
	Inc(ctx context.Context, labels ...Label)
	// Add 将计数器增加给定的值，负数会被忽略
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 可任意增减的瞬时值
type Gauge interface {
	Set(ctx context.Context, val float64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 记录值的分布，例如请求耗时
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标创建工厂
//
// 通过 Meter 创建的指标是并发安全的。
type Meter interface {
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Handler 返回 Prometheus 抓取接口，noop 实现返回 404
	Handler() http.Handler

	// Shutdown 刷新并关闭 Meter
	Shutdown(ctx context.Context) error
}

// MetricOption 指标配置选项
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项
type MetricOptions struct {
	// Unit 指标单位，建议使用 UCUM 单位代码，例如 "s"、"By"
	Unit string
}

// WithUnit 设置指标的单位
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}
