package clog

import (
	"context"
	"errors"
	"testing"
)

// TestNew 测试 Logger 创建
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "valid config", config: &Config{Level: "info", Format: "console", Output: "stdout"}},
		{name: "nil config", config: nil},
		{name: "empty config uses defaults", config: &Config{}},
		{name: "invalid level", config: &Config{Level: "verbose"}, wantErr: true},
		{name: "invalid format", config: &Config{Format: "xml"}, wantErr: true},
		{name: "writer output without writer", config: &Config{Output: "writer"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger on success")
			}
		})
	}
}

// TestLoggerLevels 低于配置级别的日志不输出
func TestLoggerLevels(t *testing.T) {
	logger, buf := newBufferLogger(t, "warn")

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}
	if lines[0]["level"] != "WARN" || lines[1]["level"] != "ERROR" {
		t.Errorf("unexpected levels: %v, %v", lines[0]["level"], lines[1]["level"])
	}
}

// TestSetLevel 动态调整级别对子 Logger 同样生效
func TestSetLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	child := logger.WithNamespace("discovery")

	child.Debug("hidden")
	if err := logger.SetLevel(DebugLevel); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	child.Debug("visible")

	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["msg"] != "visible" {
		t.Fatalf("unexpected output: %v", lines)
	}
}

// TestFieldsAndNamespace 字段、命名空间和 Context 字段都应出现在输出中
func TestFieldsAndNamespace(t *testing.T) {
	type requestIDKey struct{}

	logger, buf := newBufferLogger(t, "debug",
		WithNamespace("eureka"),
		WithContextField(requestIDKey{}, "request_id"),
	)
	logger = logger.WithNamespace("discovery").With(String("host", "registry:8761"))

	ctx := context.WithValue(context.Background(), requestIDKey{}, "req-1")
	logger.WarnContext(ctx, "lookup failed",
		String("vip", "user-service"),
		Int("status", 503),
		Error(errors.New("boom")),
		Error(nil),
	)

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	want := map[string]any{
		"namespace":  "eureka.discovery",
		"host":       "registry:8761",
		"vip":        "user-service",
		"status":     float64(503),
		"err_msg":    "boom",
		"request_id": "req-1",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("field %s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry[""]; ok {
		t.Error("Error(nil) should not produce a field")
	}
}

// TestWithDoesNotLeak 子 Logger 的字段不影响父 Logger
func TestWithDoesNotLeak(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	_ = logger.With(String("child", "yes"))
	logger.Info("parent")

	lines := decodeLines(t, buf)
	if _, ok := lines[0]["child"]; ok {
		t.Error("parent logger leaked child field")
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"DEBUG":   DebugLevel,
		"info":    InfoLevel,
		"warning": WarnLevel,
		"Error":   ErrorLevel,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("ParseLevel(trace) should fail")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Warn("nothing")
	if logger.WithNamespace("x").With(String("a", "b")) == nil {
		t.Error("Discard children should not be nil")
	}
	if err := logger.SetLevel(DebugLevel); err != nil {
		t.Errorf("SetLevel() error = %v", err)
	}
}
