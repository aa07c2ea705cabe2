package trace

// Config 链路追踪配置
//
// Endpoint 为空时不导出 span，只在进程内生成 TraceID。
type Config struct {
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Sampler     float64 `mapstructure:"sampler"`
	Batcher     string  `mapstructure:"batcher"`
	Insecure    bool    `mapstructure:"insecure"`
}

// DefaultConfig 返回默认配置（不导出）
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Sampler:     1.0,
		Batcher:     "batch",
		Insecure:    true,
	}
}
