package main

import (
	"context"
	"time"

	"github.com/spf13/pflag"

	"github.com/ceyewan/eureka/clog"
	"github.com/ceyewan/eureka/config"
	"github.com/ceyewan/eureka/discovery"
	"github.com/ceyewan/eureka/internal/sidecar"
	"github.com/ceyewan/eureka/metrics"
	"github.com/ceyewan/eureka/trace"
	"github.com/ceyewan/eureka/xerrors"
)

const serviceName = "eureka-lookup"

// AppConfig 命令行工具的完整配置
//
// 来源优先级：命令行参数 > 环境变量（EUREKA_ 前缀）> eureka.<env>.yaml > eureka.yaml > 默认值
type AppConfig struct {
	Eureka  discovery.Config `mapstructure:"eureka"`
	Log     clog.Config      `mapstructure:"log"`
	Metrics metrics.Config   `mapstructure:"metrics"`
	Trace   trace.Config     `mapstructure:"trace"`
	Sidecar sidecar.Config   `mapstructure:"sidecar"`
}

// cliOptions 不属于配置文件的运行参数
type cliOptions struct {
	vip       string
	count     int
	serve     bool
	configDir string
}

// newFlagSet 定义命令行参数，"-" 分隔的名称对应配置中的层级
func newFlagSet() (*pflag.FlagSet, *cliOptions) {
	opts := &cliOptions{}
	fs := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)

	fs.StringVar(&opts.vip, "vip", "", "要查询的 vip")
	fs.IntVar(&opts.count, "count", 20, "输出的实例选择次数")
	fs.BoolVar(&opts.serve, "serve", false, "以 sidecar 模式运行 HTTP 接口")
	fs.StringVar(&opts.configDir, "config-dir", ".", "配置文件所在目录")

	fs.String("eureka-host", "", "注册中心地址，例如 registry:8761")
	fs.Duration("eureka-ttl", discovery.DefaultTTL, "查询结果缓存时长")
	fs.String("log-level", "info", "日志级别 debug|info|warn|error")
	fs.String("sidecar-addr", ":8080", "sidecar 监听地址")
	fs.String("trace-endpoint", "", "OTLP gRPC 地址，为空时不导出")
	return fs, opts
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":              "info",
		"log.format":             "console",
		"log.output":             "stderr",
		"metrics.enabled":        true,
		"metrics.service_name":   serviceName,
		"metrics.enable_runtime": true,
		"trace.service_name":     serviceName,
		"trace.sampler":          1.0,
		"trace.insecure":         true,
		"eureka.path_template":   discovery.DefaultPathTemplate,
		"eureka.connect_timeout": 5 * time.Second,
		"eureka.read_timeout":    5 * time.Second,
	}
}

// loadConfig 解析参数并从所有来源加载配置
func loadConfig(ctx context.Context, args []string) (*AppConfig, *cliOptions, config.Loader, error) {
	fs, opts := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, xerrors.Wrap(xerrors.Combine(xerrors.ErrInvalidInput, err), "parse flags")
	}
	if opts.count <= 0 {
		return nil, nil, nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "--count must be positive, got %d", opts.count)
	}

	loader, err := config.New(&config.Config{
		Name:     "eureka",
		Paths:    []string{opts.configDir},
		FileType: "yaml",
		Defaults: defaults(),
		Flags:    fs,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, nil, nil, err
	}

	var cfg AppConfig
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, nil, nil, xerrors.Wrap(err, "decode config")
	}
	return &cfg, opts, loader, nil
}
