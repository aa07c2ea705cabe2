// Package extract 从注册中心响应中按字段名截取字符串值。
//
// 它不是通用 JSON 解析器，只针对形如
//
//	{"application":{"instance":[{...},{...}]}}
//
// 的实例列表：以第一个 "[{" 和第一个 "}]" 界定数组，按字面量 "},{" 切分对象，
// 再在每个对象片段中查找 "name": "value" 形式的字符串字段。
// 不处理转义字符，也不防御字段值中出现 "},{" 的情况。
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/ceyewan/eureka/xerrors"
)

const (
	arrayOpen  = "[{"
	arrayClose = "}]"
	separator  = "},{"
)

// ErrMalformed 片段结构不符合 "name": "value"，匹配 xerrors.ErrMalformed
var ErrMalformed = xerrors.Wrap(xerrors.ErrMalformed, "malformed instance list")

// Record 一个对象片段中提取到的字段，未出现的字段不在映射中
type Record map[string]string

// Get 返回字段值以及该字段是否存在
func (r Record) Get(name string) (string, bool) {
	v, ok := r[name]
	return v, ok
}

// Extract 对数组中的每个对象提取 names 指定的字段
//
// 缺少数组标记时返回空结果且不报错。
func Extract(body []byte, names ...string) ([]Record, error) {
	if !utf8.Valid(body) {
		return nil, xerrors.Wrap(ErrMalformed, "body is not valid UTF-8")
	}
	text := string(body)

	start := strings.Index(text, arrayOpen)
	end := strings.Index(text, arrayClose)
	if start < 0 || end < 0 || end < start {
		return []Record{}, nil
	}
	array := text[start : end+len(arrayClose)]

	fragments := strings.Split(array, separator)
	records := make([]Record, 0, len(fragments))
	for i, fragment := range fragments {
		record := make(Record, len(names))
		for _, name := range names {
			value, ok, err := field(fragment, name)
			if err != nil {
				return nil, xerrors.Wrapf(err, "instance %d", i)
			}
			if ok {
				record[name] = value
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// field 在片段中查找 "name" 后的字符串值
func field(fragment, name string) (string, bool, error) {
	key := `"` + name + `"`
	idx := strings.Index(fragment, key)
	if idx < 0 {
		return "", false, nil
	}
	rest := skipSpace(fragment[idx+len(key):])

	if !strings.HasPrefix(rest, ":") {
		return "", false, xerrors.Wrapf(ErrMalformed, "field %q: missing ':'", name)
	}
	rest = skipSpace(rest[1:])

	if !strings.HasPrefix(rest, `"`) {
		return "", false, xerrors.Wrapf(ErrMalformed, "field %q: value is not a string", name)
	}
	rest = rest[1:]

	closing := strings.IndexByte(rest, '"')
	if closing < 0 {
		return "", false, xerrors.Wrapf(ErrMalformed, "field %q: unterminated string", name)
	}
	return rest[:closing], true, nil
}

func skipSpace(s string) string {
	return strings.TrimLeft(s, " \t\r\n")
}
