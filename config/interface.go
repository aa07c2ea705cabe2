// Package config 提供统一的配置加载能力，基于 Viper 实现。
//
// 配置来源优先级（高到低）：
//
//	命令行 flag > 环境变量 > .env 文件 > 环境特定配置文件 > 基础配置文件 > 默认值
//
// 基本使用：
//
//	loader, err := config.New(&config.Config{
//	    Name:      "eureka",
//	    Paths:     []string{".", "./config"},
//	    EnvPrefix: "EUREKA",
//	    Flags:     pflag.CommandLine,
//	})
//	if err := loader.Load(ctx); err != nil {
//	    return err
//	}
//
//	var cfg AppConfig
//	_ = loader.Unmarshal(&cfg)
//
//	// 监听配置文件变化
//	ch, _ := loader.Watch(ctx, "log.level")
//	for event := range ch {
//	    fmt.Printf("%s: %v -> %v\n", event.Key, event.OldValue, event.Value)
//	}
package config

import (
	"context"
	"time"
)

// Loader 定义配置加载器的核心行为
type Loader interface {
	// Load 从所有来源加载配置并开始监听配置文件
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体（使用 mapstructure 标签）
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听某个 key 的变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// ConfigFileUsed 返回实际加载的配置文件路径，未找到时为空
	ConfigFileUsed() string
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}
