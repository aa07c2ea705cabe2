package clog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// newBufferLogger 创建输出到内存缓冲区的 json Logger，仅测试使用
func newBufferLogger(t *testing.T, level string, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := New(&Config{Level: level, Format: "json", Output: "writer"}, append(opts, WithWriter(&buf))...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return logger, &buf
}

// decodeLines 将 json 日志逐行解析
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %q is not valid JSON: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}
