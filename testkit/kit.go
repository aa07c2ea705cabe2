// Package testkit 提供测试共用的依赖和替身。
//
//   - NewKit / NewLogger / NewMeter：常用依赖
//   - FakeRegistry：基于原始 TCP 的注册中心替身，回放预置的 HTTP 响应
//   - StaticDiscovery：返回预置结果并记录调用次数的数据源
package testkit

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/ceyewan/eureka/clog"
	"github.com/ceyewan/eureka/metrics"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包，Meter 会在测试结束时关闭
func NewKit(t *testing.T) *Kit {
	meter := NewMeter()
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })
	return &Kit{
		Ctx:    context.Background(),
		Logger: NewLogger(),
		Meter:  meter,
	}
}

// NewLogger 返回一个用于测试的 logger
// 输出到开发环境格式，适合本地调试
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig(), clog.WithNamespace("test"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 返回一个启用的 meter，可以通过 Handler 抓取指标
func NewMeter() metrics.Meter {
	meter, err := metrics.New(metrics.NewDevDefaultConfig("test"))
	if err != nil {
		return metrics.Discard()
	}
	return meter
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成互不冲突的 vip 名称
func NewID() string {
	return uuid.New().String()[0:8]
}
