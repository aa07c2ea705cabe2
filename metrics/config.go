package metrics

// Config 指标组件配置
//
//	metrics:
//	  enabled: true
//	  service_name: "eureka-sidecar"
//	  version: "v0.1.0"
//	  enable_runtime: true
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// ServiceName 作为 OpenTelemetry Resource 的 service.name
	ServiceName string `mapstructure:"service_name" yaml:"service_name" json:"service_name"`

	// Version 作为 OpenTelemetry Resource 的 service.version
	Version string `mapstructure:"version" yaml:"version" json:"version"`

	// EnableRuntime 采集 Go runtime 指标（goroutine、GC、内存）
	EnableRuntime bool `mapstructure:"enable_runtime" yaml:"enable_runtime" json:"enable_runtime"`
}

// NewDevDefaultConfig 开发环境默认配置
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
	}
}
