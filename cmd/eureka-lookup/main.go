// eureka-lookup 查询注册中心并输出 vip 的实例选择结果，或以 sidecar 模式提供 HTTP 接口。
//
//	eureka-lookup --eureka-host registry:8761 --vip orders --count 20
//	eureka-lookup --eureka-host registry:8761 --serve --sidecar-addr :8080
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/eureka/clog"
	"github.com/ceyewan/eureka/config"
	"github.com/ceyewan/eureka/discovery"
	"github.com/ceyewan/eureka/internal/sidecar"
	"github.com/ceyewan/eureka/metrics"
	"github.com/ceyewan/eureka/trace"
	"github.com/ceyewan/eureka/xerrors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

type shutdown func(context.Context) error

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, opts, loader, err := loadConfig(ctx, args)
	if err != nil {
		return err
	}

	logger, err := clog.New(&cfg.Log,
		clog.WithNamespace(serviceName),
		clog.WithContextField(sidecar.RequestIDKey, "request_id"),
	)
	if err != nil {
		return xerrors.Wrap(err, "init logger")
	}
	defer logger.Flush()

	var shutdowns []shutdown
	defer func() {
		for i := len(shutdowns) - 1; i >= 0; i-- {
			if err := shutdowns[i](context.WithoutCancel(ctx)); err != nil {
				logger.Warn("shutdown failed", clog.Error(err))
			}
		}
	}()

	meter, err := metrics.New(&cfg.Metrics)
	if err != nil {
		return xerrors.Wrap(err, "init metrics")
	}
	shutdowns = append(shutdowns, meter.Shutdown)

	tp, err := trace.Init(&cfg.Trace)
	if err != nil {
		return xerrors.Wrap(err, "init trace")
	}
	shutdowns = append(shutdowns, tp.Shutdown)

	client, err := discovery.New(&cfg.Eureka,
		discovery.WithLogger(logger),
		discovery.WithMeter(meter),
		discovery.WithTracerProvider(tp),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	if opts.serve {
		return serve(ctx, cfg, loader, client, logger, meter, tp)
	}
	return lookup(ctx, client, opts, out)
}

// lookup 查询一次 vip，并输出 count 次随机选择的实例 URL
func lookup(ctx context.Context, client discovery.Discovery, opts *cliOptions, out io.Writer) error {
	if opts.vip == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "--vip is required unless --serve is set")
	}

	app, err := client.Lookup(ctx, opts.vip)
	if err != nil {
		return err
	}
	if app == nil {
		return xerrors.Wrapf(xerrors.ErrUnavailable, "no result for vip %q", opts.vip)
	}

	for i := 0; i < opts.count; i++ {
		inst := app.GetNextAppInstance()
		if inst == nil {
			return fmt.Errorf("vip %q has no UP instance (%d registered)", opts.vip, app.Len())
		}
		if _, err := fmt.Fprintln(out, inst.URL); err != nil {
			return err
		}
	}
	return nil
}

// serve 运行 sidecar，配置文件中 log.level 的变化会立即生效
func serve(ctx context.Context, cfg *AppConfig, loader config.Loader, client discovery.Discovery,
	logger clog.Logger, meter metrics.Meter, tp oteltrace.TracerProvider) error {
	gin.SetMode(gin.ReleaseMode)

	if err := watchLogLevel(ctx, loader, logger); err != nil {
		return err
	}

	srv, err := sidecar.New(&cfg.Sidecar, client,
		sidecar.WithLogger(logger),
		sidecar.WithMeter(meter),
		sidecar.WithTracerProvider(tp),
	)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func watchLogLevel(ctx context.Context, loader config.Loader, logger clog.Logger) error {
	events, err := loader.Watch(ctx, "log.level")
	if err != nil {
		return xerrors.Wrap(err, "watch log level")
	}

	go func() {
		for ev := range events {
			level, err := clog.ParseLevel(fmt.Sprint(ev.Value))
			if err != nil {
				logger.Warn("ignoring invalid log level", clog.Any("value", ev.Value), clog.Error(err))
				continue
			}
			if err := logger.SetLevel(level); err != nil {
				logger.Warn("set log level failed", clog.Error(err))
				continue
			}
			logger.Info("log level changed", clog.String("level", level.String()))
		}
	}()
	return nil
}
