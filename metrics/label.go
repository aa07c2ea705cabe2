package metrics

import (
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Label 指标标签
//
// 标签值应当是低基数的，例如 result=hit|miss，不要使用请求 ID 之类的值。
type Label struct {
	Key   string
	Value string
}

// L 创建一个 Label
//
//	counter.Inc(ctx, metrics.L("outcome", "ok"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

func toAttributes(labels []Label) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for _, l := range labels {
		attrs = append(attrs, attribute.String(l.Key, l.Value))
	}
	return attrs
}

// labelKey 生成与顺序无关的标签组合键
func labelKey(labels []Label) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.Key+"="+l.Value)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
