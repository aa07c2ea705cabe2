package discovery

import (
	"github.com/ceyewan/eureka/metrics"
	"github.com/ceyewan/eureka/xerrors"
)

const (
	// MetricRegistryRequests 访问注册中心的次数，outcome 标签区分结果
	MetricRegistryRequests = "eureka_registry_requests_total"
	// MetricRegistryDuration 访问注册中心的耗时
	MetricRegistryDuration = "eureka_registry_request_duration_seconds"
	// MetricCacheLookups 缓存查询次数，result 标签为 hit 或 refresh
	MetricCacheLookups = "eureka_cache_lookups_total"
	// MetricInstancesSkipped 因状态无法识别而被跳过的实例数
	MetricInstancesSkipped = "eureka_instances_skipped_total"
)

// 访问注册中心的结果
const (
	outcomeOK          = "ok"
	outcomeUnavailable = "unavailable"
	outcomeBadStatus   = "bad_status"
	outcomeMalformed   = "malformed"
)

type instruments struct {
	requests     metrics.Counter
	duration     metrics.Histogram
	cacheLookups metrics.Counter
	skipped      metrics.Counter
}

func newInstruments(m metrics.Meter) (*instruments, error) {
	var (
		inst instruments
		err  error
	)
	if inst.requests, err = m.Counter(MetricRegistryRequests, "注册中心请求次数"); err != nil {
		return nil, xerrors.Wrap(err, "create registry request counter")
	}
	if inst.duration, err = m.Histogram(MetricRegistryDuration, "注册中心请求耗时", metrics.WithUnit("s")); err != nil {
		return nil, xerrors.Wrap(err, "create registry duration histogram")
	}
	if inst.cacheLookups, err = m.Counter(MetricCacheLookups, "缓存查询次数"); err != nil {
		return nil, xerrors.Wrap(err, "create cache lookup counter")
	}
	if inst.skipped, err = m.Counter(MetricInstancesSkipped, "被跳过的实例数"); err != nil {
		return nil, xerrors.Wrap(err, "create skipped instance counter")
	}
	return &inst, nil
}
