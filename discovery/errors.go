package discovery

import "github.com/ceyewan/eureka/xerrors"

var (
	// ErrMalformedResponse 注册中心返回的正文不符合约定格式
	//
	// 这类错误不会被吞掉，会从 Lookup 返回给调用方。
	ErrMalformedResponse = xerrors.Wrap(xerrors.ErrMalformed, "malformed registry response")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.Wrap(xerrors.ErrInvalidInput, "invalid discovery config")
)
