package clog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// newHandler 按配置构造 slog.Handler，返回的 LevelVar 用于动态调整级别。
func newHandler(config *Config, options *options) (slog.Handler, *slog.LevelVar, error) {
	w, err := resolveWriter(config, options)
	if err != nil {
		return nil, nil, err
	}

	level, _ := ParseLevel(config.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level.slogLevel())

	opts := &slog.HandlerOptions{
		AddSource:   config.AddSource,
		Level:       levelVar,
		ReplaceAttr: replaceAttr,
	}

	if strings.EqualFold(config.Format, "json") {
		return slog.NewJSONHandler(w, opts), levelVar, nil
	}
	return slog.NewTextHandler(w, opts), levelVar, nil
}

// resolveWriter 根据 Output 选择输出目标
func resolveWriter(config *Config, options *options) (io.Writer, error) {
	if options.writer != nil {
		return options.writer, nil
	}
	switch strings.ToLower(config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "writer":
		return nil, fmt.Errorf("writer output requires WithWriter")
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// replaceAttr 统一 level/time/source 的输出格式
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		if level, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(strings.ToUpper(Level(level).String()))
		}
	case slog.TimeKey:
		if a.Value.Kind() == slog.KindTime {
			a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
		}
	case slog.SourceKey:
		if source, ok := a.Value.Any().(*slog.Source); ok {
			dir := filepath.Base(filepath.Dir(source.File))
			return slog.String("caller", fmt.Sprintf("%s/%s:%d", dir, filepath.Base(source.File), source.Line))
		}
	}
	return a
}
