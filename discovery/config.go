package discovery

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ceyewan/eureka/internal/wire"
	"github.com/ceyewan/eureka/xerrors"
)

const (
	// DefaultPathTemplate Eureka 按 vip 查询应用的路径
	DefaultPathTemplate = "/eureka/apps/{vip}"
	// DefaultTTL 查询结果的缓存时长
	DefaultTTL = 30 * time.Second
	// DefaultMaxEntries 缓存的 vip 数量上限
	DefaultMaxEntries = 10000
	// DefaultIdleTimeout 多久未被访问的 vip 会被淘汰
	DefaultIdleTimeout = 10 * time.Minute

	vipPlaceholder = "{vip}"
	defaultPort    = 80
)

// Config 服务发现组件配置
type Config struct {
	// Host 注册中心地址，支持 "host"、"host:port" 和 "http://host:port/..."，默认端口 80
	// 通过 WithClient 注入数据源时可以为空
	Host string `mapstructure:"host" yaml:"host" json:"host"`

	// PathTemplate 请求路径模板，"{vip}" 会被替换，默认 "/eureka/apps/{vip}"
	PathTemplate string `mapstructure:"path_template" yaml:"path_template" json:"path_template"`

	// TTL 查询结果缓存时长，默认 30s
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`

	// ConnectTimeout 建立连接和发送请求的超时，默认 5s
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" json:"connect_timeout"`

	// ReadTimeout 读取响应的超时，默认 5s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`

	// MaxResponseBytes 单个响应的大小上限，默认 16MiB
	MaxResponseBytes int64 `mapstructure:"max_response_bytes" yaml:"max_response_bytes" json:"max_response_bytes"`

	// MaxEntries 缓存的 vip 数量上限，默认 10000
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries" json:"max_entries"`

	// IdleTimeout 空闲 vip 的淘汰时间，默认 10m，且不小于 2 倍 TTL
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout"`
}

func (c *Config) setDefaults() {
	if c.PathTemplate == "" {
		c.PathTemplate = DefaultPathTemplate
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = wire.DefaultConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = wire.DefaultReadTimeout
	}
	if c.MaxResponseBytes == 0 {
		c.MaxResponseBytes = wire.DefaultMaxResponseBytes
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.IdleTimeout < 2*c.TTL {
		c.IdleTimeout = 2 * c.TTL
	}
}

// validate 在 setDefaults 之后调用，requireHost 为 false 时允许 Host 为空
func (c *Config) validate(requireHost bool) error {
	if requireHost || c.Host != "" {
		if _, err := ParseEndpoint(c.Host); err != nil {
			return err
		}
	}
	if !strings.HasPrefix(c.PathTemplate, "/") || !strings.Contains(c.PathTemplate, vipPlaceholder) {
		return xerrors.Wrapf(ErrInvalidConfig, "path template %q must start with '/' and contain %s", c.PathTemplate, vipPlaceholder)
	}
	if c.TTL < 0 {
		return xerrors.Wrapf(ErrInvalidConfig, "ttl must not be negative, got %s", c.TTL)
	}
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 {
		return xerrors.Wrap(ErrInvalidConfig, "timeouts must not be negative")
	}
	if c.MaxResponseBytes < 0 {
		return xerrors.Wrap(ErrInvalidConfig, "max response bytes must not be negative")
	}
	if c.MaxEntries < 0 {
		return xerrors.Wrap(ErrInvalidConfig, "max entries must not be negative")
	}
	return nil
}

func (c *Config) wireOptions() wire.Options {
	return wire.Options{
		ConnectTimeout:   c.ConnectTimeout,
		ReadTimeout:      c.ReadTimeout,
		MaxResponseBytes: c.MaxResponseBytes,
	}
}

// ParseEndpoint 解析注册中心地址
//
//	"registry"                 -> registry:80
//	"registry:8761"            -> registry:8761
//	"http://registry:8761/eureka" -> registry:8761
//
// https 会被拒绝。
func ParseEndpoint(raw string) (wire.Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return wire.Endpoint{}, xerrors.Wrap(ErrInvalidConfig, "host is required")
	}

	hostport := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return wire.Endpoint{}, xerrors.Wrapf(ErrInvalidConfig, "parse host %q: %v", raw, err)
		}
		if !strings.EqualFold(u.Scheme, "http") {
			return wire.Endpoint{}, xerrors.Wrapf(ErrInvalidConfig, "unsupported scheme %q", u.Scheme)
		}
		hostport = u.Host
	}

	host, portText, err := net.SplitHostPort(hostport)
	if err != nil {
		// 没有端口
		host, portText = strings.Trim(hostport, "[]"), ""
	}
	if host == "" {
		return wire.Endpoint{}, xerrors.Wrapf(ErrInvalidConfig, "host %q has no hostname", raw)
	}

	port := defaultPort
	if portText != "" {
		port, err = strconv.Atoi(portText)
		if err != nil || port <= 0 || port > 65535 {
			return wire.Endpoint{}, xerrors.Wrapf(ErrInvalidConfig, "invalid port in %q", raw)
		}
	}
	return wire.Endpoint{Host: host, Port: port}, nil
}
