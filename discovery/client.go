package discovery

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/eureka/clog"
	"github.com/ceyewan/eureka/internal/extract"
	"github.com/ceyewan/eureka/internal/wire"
	"github.com/ceyewan/eureka/metrics"
	"github.com/ceyewan/eureka/xerrors"
)

const tracerName = "github.com/ceyewan/eureka/discovery"

// 实例对象中读取的字段
const (
	fieldHomePageURL = "homePageUrl"
	fieldVIPAddress  = "vipAddress"
	fieldStatus      = "status"
)

var instanceFields = []string{fieldHomePageURL, fieldVIPAddress, fieldStatus}

// sendFunc 发送请求并返回原始响应，默认为 wire.Send
type sendFunc func(ctx context.Context, ep wire.Endpoint, path string, opts wire.Options) ([]byte, error)

// httpClient 直接访问注册中心的数据源
//
// 网络失败和非 200 响应只记录日志并返回 (nil, nil)；
// 正文格式错误返回 ErrMalformedResponse。
type httpClient struct {
	endpoint     wire.Endpoint
	pathTemplate string
	wireOpts     wire.Options
	send         sendFunc

	logger clog.Logger
	tracer trace.Tracer
	inst   *instruments
}

func newHTTPClient(cfg *Config, ep wire.Endpoint, logger clog.Logger, tp trace.TracerProvider, inst *instruments) *httpClient {
	return &httpClient{
		endpoint:     ep,
		pathTemplate: cfg.PathTemplate,
		wireOpts:     cfg.wireOptions(),
		send:         wire.Send,
		logger:       logger,
		tracer:       tp.Tracer(tracerName),
		inst:         inst,
	}
}

func (c *httpClient) path(vip string) string {
	return strings.ReplaceAll(c.pathTemplate, vipPlaceholder, url.PathEscape(vip))
}

// Lookup 向注册中心查询 vip 对应的实例
func (c *httpClient) Lookup(ctx context.Context, vip string) (*App, error) {
	if vip == "" {
		return nil, nil
	}

	ctx, span := c.tracer.Start(ctx, "eureka.registry.lookup",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("eureka.vip", vip),
			attribute.String("server.address", c.endpoint.Host),
			attribute.Int("server.port", c.endpoint.Port),
		),
	)
	defer span.End()

	start := time.Now()
	app, outcome, err := c.lookup(ctx, span, vip)
	c.inst.duration.Record(ctx, time.Since(start).Seconds(), metrics.L("outcome", outcome))
	c.inst.requests.Inc(ctx, metrics.L("outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else if outcome != outcomeOK {
		span.SetStatus(codes.Error, outcome)
	}
	return app, err
}

func (c *httpClient) lookup(ctx context.Context, span trace.Span, vip string) (*App, string, error) {
	host := c.endpoint.String()

	raw, err := c.send(ctx, c.endpoint, c.path(vip), c.wireOpts)
	if err != nil {
		c.logTransportFailure(ctx, vip, host, err)
		span.RecordError(err)
		return nil, outcomeUnavailable, nil
	}

	resp, err := wire.Decode(raw)
	if err != nil {
		return nil, outcomeMalformed, xerrors.Wrapf(xerrors.Combine(ErrMalformedResponse, err), "lookup %s", vip)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode != 200 {
		c.logger.WarnContext(ctx, "registry returned non-200 status",
			clog.String("vip", vip),
			clog.String("host", host),
			clog.Int("status", resp.StatusCode),
		)
		return nil, outcomeBadStatus, nil
	}

	records, err := extract.Extract(resp.Body, instanceFields...)
	if err != nil {
		return nil, outcomeMalformed, xerrors.Wrapf(xerrors.Combine(ErrMalformedResponse, err), "lookup %s", vip)
	}

	instances := make([]Instance, 0, len(records))
	for i, r := range records {
		inst, ok := c.toInstance(ctx, vip, i, r)
		if ok {
			instances = append(instances, inst)
		}
	}
	span.SetAttributes(attribute.Int("eureka.instances", len(instances)))

	c.logger.DebugContext(ctx, "registry lookup succeeded",
		clog.String("vip", vip),
		clog.Int("instances", len(instances)),
	)
	return NewApp(instances...), outcomeOK, nil
}

// toInstance 状态缺失或无法识别时跳过该实例
func (c *httpClient) toInstance(ctx context.Context, vip string, index int, r extract.Record) (Instance, bool) {
	raw, _ := r.Get(fieldStatus)
	status, ok := ParseStatus(raw)
	if !ok {
		c.logger.WarnContext(ctx, "skipping instance with unrecognized status",
			clog.String("vip", vip),
			clog.Int("index", index),
			clog.String("status", raw),
		)
		c.inst.skipped.Inc(ctx)
		return Instance{}, false
	}

	home, _ := r.Get(fieldHomePageURL)
	address, _ := r.Get(fieldVIPAddress)
	return Instance{Status: status, URL: home + address + "/"}, true
}

// logTransportFailure 按连接、超时和其他 IO 错误分别记录
func (c *httpClient) logTransportFailure(ctx context.Context, vip, host string, err error) {
	fields := []clog.Field{
		clog.String("vip", vip),
		clog.String("host", host),
		clog.ErrorWithType(err),
	}

	var te *wire.TransportError
	switch {
	case xerrors.As(err, &te) && te.Timeout():
		c.logger.WarnContext(ctx, "registry request timed out", fields...)
	case te != nil && te.Op == "connect":
		c.logger.WarnContext(ctx, "cannot connect to registry", fields...)
	default:
		c.logger.WarnContext(ctx, "registry request failed", append(fields, clog.String("op", opOf(te)))...)
	}
}

func opOf(te *wire.TransportError) string {
	if te == nil {
		return "unknown"
	}
	return te.Op
}

var _ Discovery = (*httpClient)(nil)
