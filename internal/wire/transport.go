// Package wire 实现注册中心查询所需的最小 HTTP/1.1 客户端。
//
// 它直接基于 TCP 字节流工作，不依赖 net/http：
//   - Send 发送固定格式的 GET 请求并读取到对端关闭连接为止
//   - Decode 解析状态行和头部，并处理 chunked 传输编码
//
// 不支持重定向、keep-alive、压缩、TLS，也不按 Content-Length 截断读取。
// 由于请求总是携带 "Connection: close"，响应体以连接关闭为界。
package wire

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/ceyewan/eureka/xerrors"
)

const (
	// DefaultConnectTimeout 建立连接和发送请求的默认超时
	DefaultConnectTimeout = 5 * time.Second
	// DefaultReadTimeout 读取完整响应的默认超时
	DefaultReadTimeout = 5 * time.Second
	// DefaultMaxResponseBytes 单个响应的默认上限
	DefaultMaxResponseBytes int64 = 16 << 20
)

// Endpoint 注册中心地址
type Endpoint struct {
	Host string
	Port int
}

// Address 返回用于拨号的 host:port
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// HostHeader 返回 Host 头的值，默认端口 80 时省略端口
func (e Endpoint) HostHeader() string {
	if e.Port == 80 {
		return e.Host
	}
	return e.Address()
}

func (e Endpoint) String() string {
	return e.Address()
}

// Options 传输层参数，零值字段使用默认值
type Options struct {
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	MaxResponseBytes int64
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.MaxResponseBytes <= 0 {
		o.MaxResponseBytes = DefaultMaxResponseBytes
	}
	return o
}

// TransportError 传输阶段（连接、发送、接收）的失败
//
// 它同时匹配 xerrors.ErrUnavailable 和底层网络错误。
type TransportError struct {
	Op   string // "connect" | "send" | "receive"
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("wire: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{xerrors.ErrUnavailable, e.Err}
}

// Timeout 报告失败是否由超时引起
func (e *TransportError) Timeout() bool {
	var netErr net.Error
	return xerrors.As(e.Err, &netErr) && netErr.Timeout()
}

// ErrResponseTooLarge 响应超过 MaxResponseBytes
var ErrResponseTooLarge = xerrors.New("response exceeds size limit")

// BuildRequest 生成固定格式的 GET 请求
func BuildRequest(ep Endpoint, path string) []byte {
	return []byte("GET " + path + " HTTP/1.1\r\n" +
		"Host: " + ep.HostHeader() + "\r\n" +
		"Accept: application/json\r\n" +
		"Connection: close\r\n" +
		"\r\n")
}

// Send 建立一次连接，发送 GET 请求并返回完整的原始响应
//
// 连接在任何返回路径上都会被关闭，本层不做重试。ctx 取消时连接立即关闭，
// 进行中的读写以 ctx 的错误失败。
func Send(ctx context.Context, ep Endpoint, path string, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	addr := ep.Address()

	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: "connect", Addr: addr, Err: err}
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	fail := func(op string, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return &TransportError{Op: op, Addr: addr, Err: err}
	}

	if err := conn.SetWriteDeadline(time.Now().Add(opts.ConnectTimeout)); err != nil {
		return nil, fail("send", err)
	}
	if _, err := conn.Write(BuildRequest(ep, path)); err != nil {
		return nil, fail("send", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout)); err != nil {
		return nil, fail("receive", err)
	}
	// 多读 1 字节用于判断是否超限
	raw, err := io.ReadAll(io.LimitReader(conn, opts.MaxResponseBytes+1))
	if err != nil {
		return nil, fail("receive", err)
	}
	if int64(len(raw)) > opts.MaxResponseBytes {
		return nil, &TransportError{Op: "receive", Addr: addr, Err: ErrResponseTooLarge}
	}
	return raw, nil
}
