package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ceyewan/eureka/clog"
	"github.com/ceyewan/eureka/internal/wire"
	"github.com/ceyewan/eureka/metrics"
	"github.com/ceyewan/eureka/xerrors"
)

const twoInstanceBody = `{"application":{"name":"SVC","instance":[` +
	`{"homePageUrl":"http://a/","vipAddress":"svc","status":"UP"},` +
	`{"homePageUrl":"http://b/","vipAddress":"svc","status":"DOWN"}]}}`

type clientFixture struct {
	client   *httpClient
	logs     *bytes.Buffer
	recorder *tracetest.SpanRecorder
	paths    []string
}

// newClientFixture 构造一个 send 被替换的 httpClient
func newClientFixture(t *testing.T, send sendFunc) *clientFixture {
	t.Helper()

	var buf bytes.Buffer
	logger, err := clog.New(&clog.Config{Level: "debug", Format: "json", Output: "writer"}, clog.WithWriter(&buf))
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	inst, err := newInstruments(metrics.Discard())
	require.NoError(t, err)

	cfg := &Config{Host: "registry.local:8761"}
	cfg.setDefaults()
	ep, err := ParseEndpoint(cfg.Host)
	require.NoError(t, err)

	f := &clientFixture{logs: &buf, recorder: recorder}
	f.client = newHTTPClient(cfg, ep, logger.WithNamespace("discovery"), tp, inst)
	f.client.send = func(ctx context.Context, ep wire.Endpoint, path string, opts wire.Options) ([]byte, error) {
		f.paths = append(f.paths, path)
		return send(ctx, ep, path, opts)
	}
	return f
}

func respond(raw string) sendFunc {
	return func(context.Context, wire.Endpoint, string, wire.Options) ([]byte, error) {
		return []byte(raw), nil
	}
}

func fail(err error) sendFunc {
	return func(context.Context, wire.Endpoint, string, wire.Options) ([]byte, error) {
		return nil, err
	}
}

func (f *clientFixture) entries(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(f.logs.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func (f *clientFixture) warnings(t *testing.T) []map[string]any {
	var out []map[string]any
	for _, e := range f.entries(t) {
		if e["level"] == "WARN" {
			out = append(out, e)
		}
	}
	return out
}

func TestHTTPClient_RoundTrip(t *testing.T) {
	f := newClientFixture(t, respond("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n"+twoInstanceBody))

	app, err := f.client.Lookup(context.Background(), "svc")
	require.NoError(t, err)
	require.NotNil(t, app)

	assert.Equal(t, []Instance{
		{Status: StatusUp, URL: "http://a/svc/"},
		{Status: StatusDown, URL: "http://b/svc/"},
	}, app.Instances())
	assert.Equal(t, []string{"/eureka/apps/svc"}, f.paths)

	spans := f.recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "eureka.registry.lookup", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestHTTPClient_ChunkedBody(t *testing.T) {
	body := twoInstanceBody
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"10\r\n" + body[:16] + "\r\n" +
		strconv.FormatInt(int64(len(body)-16), 16) + "\r\n" + body[16:] + "\r\n" +
		"0\r\n\r\n"
	f := newClientFixture(t, respond(raw))

	app, err := f.client.Lookup(context.Background(), "svc")
	require.NoError(t, err)
	assert.Equal(t, 2, app.Len())
}

func TestHTTPClient_EmptyVIP(t *testing.T) {
	f := newClientFixture(t, respond("unused"))
	app, err := f.client.Lookup(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, app)
	assert.Empty(t, f.paths)
}

func TestHTTPClient_PathEscapesVIP(t *testing.T) {
	f := newClientFixture(t, respond("HTTP/1.1 200 OK\r\n\r\n"))
	_, err := f.client.Lookup(context.Background(), "a b/c")
	require.NoError(t, err)
	assert.Equal(t, []string{"/eureka/apps/a%20b%2Fc"}, f.paths)
}

func TestHTTPClient_NonOKIsAbsent(t *testing.T) {
	f := newClientFixture(t, respond("HTTP/1.1 503 Service Unavailable\r\n\r\n"))

	app, err := f.client.Lookup(context.Background(), "svc")
	assert.NoError(t, err)
	assert.Nil(t, app)

	warns := f.warnings(t)
	require.Len(t, warns, 1)
	assert.Equal(t, "registry returned non-200 status", warns[0]["msg"])
	assert.Equal(t, "svc", warns[0]["vip"])
	assert.Equal(t, "registry.local:8761", warns[0]["host"])
	assert.EqualValues(t, 503, warns[0]["status"])
	assert.Equal(t, "discovery", warns[0]["namespace"])

	spans := f.recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestHTTPClient_TransportFailuresAreAbsent(t *testing.T) {
	timeoutErr := &net.OpError{Op: "read", Net: "tcp", Err: os.ErrDeadlineExceeded}

	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "connect refused",
			err:     &wire.TransportError{Op: "connect", Addr: "registry.local:8761", Err: xerrors.New("connection refused")},
			wantMsg: "cannot connect to registry",
		},
		{
			name:    "read timeout",
			err:     &wire.TransportError{Op: "receive", Addr: "registry.local:8761", Err: timeoutErr},
			wantMsg: "registry request timed out",
		},
		{
			name:    "io error",
			err:     &wire.TransportError{Op: "receive", Addr: "registry.local:8761", Err: xerrors.New("connection reset by peer")},
			wantMsg: "registry request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClientFixture(t, fail(tt.err))

			app, err := f.client.Lookup(context.Background(), "svc")
			assert.NoError(t, err)
			assert.Nil(t, app)

			warns := f.warnings(t)
			require.Len(t, warns, 1)
			assert.Equal(t, tt.wantMsg, warns[0]["msg"])
			assert.Equal(t, "svc", warns[0]["vip"])
			assert.Equal(t, "registry.local:8761", warns[0]["host"])
			errField, ok := warns[0]["error"].(map[string]any)
			require.True(t, ok)
			assert.Contains(t, errField["msg"], tt.err.Error())
			assert.Equal(t, "*wire.TransportError", errField["type"])
		})
	}
}

func TestHTTPClient_MalformedIsError(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		detail string
	}{
		{name: "no header terminator", raw: "HTTP/1.1 200 OK\r\n", detail: "header terminator not found"},
		{name: "bad chunk", raw: "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\nxyz\r\n", detail: `invalid chunk size "xyz"`},
		{name: "field without colon", raw: "HTTP/1.1 200 OK\r\n\r\n" + `{"instance":[{"homePageUrl" "http://a/"}]}`, detail: `field "homePageUrl": missing ':'`},
		{name: "field not a string", raw: "HTTP/1.1 200 OK\r\n\r\n" + `{"instance":[{"status":1}]}`, detail: `field "status": value is not a string`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClientFixture(t, respond(tt.raw))

			app, err := f.client.Lookup(context.Background(), "svc")
			require.Error(t, err)
			assert.Nil(t, app)
			assert.True(t, xerrors.Is(err, ErrMalformedResponse))
			assert.True(t, xerrors.Is(err, xerrors.ErrMalformed))
			assert.Contains(t, err.Error(), "malformed registry response")
			assert.Contains(t, err.Error(), tt.detail)

			spans := f.recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status().Code)
		})
	}
}

func TestHTTPClient_MissingMarkerIsEmptyApp(t *testing.T) {
	f := newClientFixture(t, respond("HTTP/1.1 200 OK\r\n\r\n"+`{"application":{"name":"SVC","instance":[]}}`))

	app, err := f.client.Lookup(context.Background(), "svc")
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, 0, app.Len())
}

func TestHTTPClient_SkipsUnrecognizedStatus(t *testing.T) {
	body := `{"application":{"instance":[` +
		`{"homePageUrl":"http://a/","vipAddress":"svc","status":"up"},` +
		`{"homePageUrl":"http://b/","vipAddress":"svc"},` +
		`{"homePageUrl":"http://c/","vipAddress":"svc","status":"UP"}]}}`
	f := newClientFixture(t, respond("HTTP/1.1 200 OK\r\n\r\n"+body))

	app, err := f.client.Lookup(context.Background(), "svc")
	require.NoError(t, err)
	assert.Equal(t, []Instance{{Status: StatusUp, URL: "http://c/svc/"}}, app.Instances())

	warns := f.warnings(t)
	require.Len(t, warns, 2)
	assert.Equal(t, "skipping instance with unrecognized status", warns[0]["msg"])
	assert.Equal(t, "up", warns[0]["status"])
	assert.Equal(t, "", warns[1]["status"])
}

func TestHTTPClient_NoopTracer(t *testing.T) {
	inst, err := newInstruments(metrics.Discard())
	require.NoError(t, err)
	cfg := &Config{Host: "registry"}
	cfg.setDefaults()

	c := newHTTPClient(cfg, wire.Endpoint{Host: "registry", Port: 80}, clog.Discard(), noop.NewTracerProvider(), inst)
	c.send = respond("HTTP/1.1 200 OK\r\n\r\n" + twoInstanceBody)

	app, err := c.Lookup(context.Background(), "svc")
	require.NoError(t, err)
	assert.Equal(t, 2, app.Len())
}
