// Package sidecar 通过 HTTP 暴露服务发现结果，供不便直接集成客户端的进程使用。
//
//	GET /healthz          存活检查
//	GET /apps/:vip        vip 的全部实例
//	GET /apps/:vip/next   随机选择一个 UP 实例，没有时返回 404
//	GET /metrics          Prometheus 指标
//
// 配置 RateLimit 后 /apps 下的接口按客户端 IP 限流，超出时返回 429。
package sidecar

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/eureka/clog"
	"github.com/ceyewan/eureka/discovery"
	"github.com/ceyewan/eureka/metrics"
	"github.com/ceyewan/eureka/trace"
	"github.com/ceyewan/eureka/xerrors"
)

// Config sidecar 配置
type Config struct {
	// Addr 监听地址，默认 ":8080"
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`

	// ServiceName 用于链路追踪的服务名，默认 "eureka-sidecar"
	ServiceName string `mapstructure:"service_name" yaml:"service_name" json:"service_name"`

	// ShutdownTimeout 优雅退出的最长等待时间，默认 5s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// RateLimit 按客户端 IP 限流，默认关闭
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ServiceName == "" {
		c.ServiceName = "eureka-sidecar"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger         clog.Logger
	meter          metrics.Meter
	tracerProvider oteltrace.TracerProvider
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 "sidecar" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("sidecar")
		}
	}
}

// WithMeter 注入 Meter，/metrics 使用它的 Handler
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithTracerProvider 注入 TracerProvider
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// Server 服务发现 HTTP 接口
type Server struct {
	cfg    Config
	client discovery.Discovery
	logger clog.Logger
	meter  metrics.Meter
	engine *gin.Engine

	requests metrics.Counter
	limiter  *ipLimiter
}

// New 创建 sidecar
func New(cfg *Config, client discovery.Discovery, opts ...Option) (*Server, error) {
	if client == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "discovery client is required")
	}
	var c Config
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()

	opt := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, o := range opts {
		o(opt)
	}

	requests, err := opt.meter.Counter("eureka_sidecar_requests_total", "sidecar 请求次数")
	if err != nil {
		return nil, xerrors.Wrap(err, "create sidecar request counter")
	}

	s := &Server{
		cfg:      c,
		client:   client,
		logger:   opt.logger,
		meter:    opt.meter,
		requests: requests,
	}
	if c.RateLimit.enabled() {
		s.limiter = newIPLimiter(c.RateLimit)
	}
	s.engine = s.routes(opt.tracerProvider)
	return s, nil
}

func (s *Server) routes(tp oteltrace.TracerProvider) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestID())
	engine.Use(trace.GinMiddleware(s.cfg.ServiceName, tp))
	engine.Use(s.accessLog())
	if s.limiter != nil {
		engine.Use(s.rateLimit(s.limiter))
	}

	engine.GET("/healthz", s.healthz)
	engine.GET("/apps/:vip", s.getApp)
	engine.GET("/apps/:vip/next", s.nextInstance)
	engine.GET("/metrics", gin.WrapH(s.meter.Handler()))
	return engine
}

// Handler 返回 HTTP 处理器，便于测试或挂载到其他 Server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 监听 Addr 直到 ctx 被取消，然后优雅退出
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return xerrors.Wrapf(err, "listen %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定的 listener 上提供服务直到 ctx 被取消
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("sidecar listening", clog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return xerrors.Wrap(err, "shutdown sidecar")
	}
	if err := <-errCh; err != nil && !xerrors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("sidecar stopped")
	return nil
}
