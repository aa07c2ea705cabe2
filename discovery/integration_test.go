package discovery_test

import (
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ceyewan/eureka/discovery"
	"github.com/ceyewan/eureka/testkit"
	"github.com/ceyewan/eureka/xerrors"
)

func newRegistryClient(t *testing.T, reg *testkit.FakeRegistry, opts ...discovery.Option) discovery.Client {
	t.Helper()
	client, err := discovery.New(&discovery.Config{
		Host:        reg.Addr(),
		TTL:         time.Minute,
		ReadTimeout: 2 * time.Second,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRegistry_RoundTrip(t *testing.T) {
	reg := testkit.NewFakeRegistry(t)
	vip := "svc-" + testkit.NewID()
	reg.HandleApp(vip,
		testkit.FakeInstance{InstanceID: "a", HomePageURL: "http://a/", VIPAddress: "svc", Status: "UP"},
		testkit.FakeInstance{InstanceID: "b", HomePageURL: "http://b/", VIPAddress: "svc", Status: "DOWN"},
	)
	client := newRegistryClient(t, reg)

	app, err := client.Lookup(context.Background(), vip)
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, []discovery.Instance{
		{Status: discovery.StatusUp, URL: "http://a/svc/"},
		{Status: discovery.StatusDown, URL: "http://b/svc/"},
	}, app.Instances())

	inst := app.GetNextAppInstance()
	require.NotNil(t, inst)
	assert.Equal(t, "http://a/svc/", inst.URL)

	assert.Contains(t, reg.LastRequest(), "GET /eureka/apps/"+vip+" HTTP/1.1\r\n")
	assert.Contains(t, reg.LastRequest(), "Accept: application/json\r\n")
	assert.Contains(t, reg.LastRequest(), "Connection: close\r\n")
}

func TestRegistry_ChunkedResponse(t *testing.T) {
	reg := testkit.NewFakeRegistry(t)
	body := testkit.AppJSON("orders",
		testkit.FakeInstance{HomePageURL: "http://a/", VIPAddress: "orders", Status: "UP"},
		testkit.FakeInstance{HomePageURL: "http://b/", VIPAddress: "orders", Status: "UP"},
	)
	reg.Handle("/eureka/apps/orders", testkit.ChunkedResponse(body, 7))
	client := newRegistryClient(t, reg)

	app, err := client.Lookup(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, 2, app.Len())
}

func TestRegistry_ServiceUnavailableIsAbsent(t *testing.T) {
	reg := testkit.NewFakeRegistry(t)
	reg.Handle("/eureka/apps/orders", testkit.StatusResponse(503, "Service Unavailable"))
	client := newRegistryClient(t, reg)

	app, err := client.Lookup(context.Background(), "orders")
	assert.NoError(t, err)
	assert.Nil(t, app)
}

func TestRegistry_ConnectionRefusedIsAbsent(t *testing.T) {
	reg := testkit.NewFakeRegistry(t)
	addr := reg.Addr()
	reg.Close()

	client, err := discovery.New(&discovery.Config{Host: addr, ConnectTimeout: time.Second})
	require.NoError(t, err)
	defer client.Close()

	app, err := client.Lookup(context.Background(), "orders")
	assert.NoError(t, err)
	assert.Nil(t, app)
}

func TestRegistry_MissingMarkerIsEmptyApp(t *testing.T) {
	reg := testkit.NewFakeRegistry(t)
	reg.HandleApp("orders")
	client := newRegistryClient(t, reg)

	app, err := client.Lookup(context.Background(), "orders")
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, 0, app.Len())
	assert.Nil(t, app.GetNextAppInstance())
}

func TestRegistry_MalformedKeepsCachedValue(t *testing.T) {
	reg := testkit.NewFakeRegistry(t)
	reg.HandleApp("orders", testkit.FakeInstance{HomePageURL: "http://a/", VIPAddress: "orders", Status: "UP"})

	client, err := discovery.New(&discovery.Config{Host: reg.Addr(), TTL: time.Second})
	require.NoError(t, err)
	defer client.Close()
	clock := newFakeClock()
	discovery.SetClock(client, clock.Now)
	ctx := context.Background()

	before, err := client.Lookup(ctx, "orders")
	require.NoError(t, err)
	require.Equal(t, 1, before.Len())

	reg.Handle("/eureka/apps/orders", testkit.OKResponse(`{"application":{"instance":[{"homePageUrl" "http://a/"}]}}`))
	clock.Advance(time.Second)

	_, err = client.Lookup(ctx, "orders")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, discovery.ErrMalformedResponse))

	// 注册中心恢复后，下一次调用重新刷新
	reg.HandleApp("orders",
		testkit.FakeInstance{HomePageURL: "http://a/", VIPAddress: "orders", Status: "UP"},
		testkit.FakeInstance{HomePageURL: "http://b/", VIPAddress: "orders", Status: "UP"},
	)
	after, err := client.Lookup(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 2, after.Len())
	assert.Equal(t, 1, before.Len())
	assert.Equal(t, 3, reg.Hits("/eureka/apps/orders"))
}

func TestRegistry_ConcurrentCallersShareOneRequest(t *testing.T) {
	reg := testkit.NewFakeRegistry(t)
	reg.HandleApp("orders", testkit.FakeInstance{HomePageURL: "http://a/", VIPAddress: "orders", Status: "UP"})
	reg.SetDelay(100 * time.Millisecond)
	client := newRegistryClient(t, reg)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app, err := client.Lookup(context.Background(), "orders")
			assert.NoError(t, err)
			assert.Equal(t, 1, app.Len())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, reg.Hits("/eureka/apps/orders"))
}

func TestRegistry_Telemetry(t *testing.T) {
	kit := testkit.NewKit(t)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	reg := testkit.NewFakeRegistry(t)
	reg.HandleApp("orders", testkit.FakeInstance{HomePageURL: "http://a/", VIPAddress: "orders", Status: "UP"})
	client := newRegistryClient(t, reg,
		discovery.WithLogger(kit.Logger),
		discovery.WithMeter(kit.Meter),
		discovery.WithTracerProvider(tp),
	)

	for i := 0; i < 3; i++ {
		_, err := client.Lookup(kit.Ctx, "orders")
		require.NoError(t, err)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "eureka.registry.lookup", spans[0].Name())

	rec := httptest.NewRecorder()
	kit.Meter.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, discovery.MetricRegistryRequests)
	assert.Contains(t, text, `outcome="ok"`)
	assert.Contains(t, text, discovery.MetricCacheLookups)
	assert.Contains(t, text, `result="hit"`)
	assert.Contains(t, text, `result="refresh"`)
	assert.Contains(t, text, discovery.MetricRegistryDuration)
}
