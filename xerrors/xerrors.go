// Package xerrors 提供标准化错误处理工具。
//
// 除了 Wrap/Combine 等包装函数外，还定义了组件间共享的哨兵错误，
// 调用方可以通过 xerrors.Is 判断错误类别而不依赖具体的错误文本。
package xerrors

import (
	"errors"
	"fmt"
	"strings"
)

// 通用哨兵错误
var (
	// ErrInvalidInput 输入参数或配置无效
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformed 对端返回的数据不符合约定格式
	ErrMalformed = errors.New("malformed data")

	// ErrUnavailable 依赖的远端服务不可用
	ErrUnavailable = errors.New("unavailable")
)

// Wrap 用上下文信息包装错误，保留错误链。
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 用格式化的上下文信息包装错误。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// MultiError 合并多个错误，Error 按顺序以 ": " 连接全部信息。
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	msgs := make([]string, len(m.Errors))
	for i, err := range m.Errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, ": ")
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Combine 将多个错误合并为一个，nil 会被忽略。
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &MultiError{Errors: nonNil}
	}
}

// 标准库函数再导出
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)
