package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind 领域错误类别，程序据此分支，消息仅用于日志
type Kind string

const (
	// KindInvalidSymbolFormat 符号不符合资产类别的语法
	KindInvalidSymbolFormat Kind = "invalid_symbol_format"
	// KindUnknownSymbol 上游明确表示商品不存在
	KindUnknownSymbol Kind = "unknown_symbol"
	// KindUpstreamUnavailable 上游不可达或返回非 2xx
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	// KindUpstreamTimeout 上游在拉取超时内未响应
	KindUpstreamTimeout Kind = "upstream_timeout"
	// KindMalformedResponse 上游返回无法解析或缺少必需字段的报文
	KindMalformedResponse Kind = "malformed_response"
	// KindNoDataAvailable 缓存无旧值且刷新失败
	KindNoDataAvailable Kind = "no_data_available"
	// KindMarketClosed 市场闭市（仅日历查询使用）
	KindMarketClosed Kind = "market_closed"
)

// Error 携带错误类别与资产标识的领域错误
type Error struct {
	Kind Kind
	ID   AssetIdentifier
	Err  error
}

// NewError 创建领域错误
func NewError(kind Kind, id AssetIdentifier, err error) *Error {
	return &Error{Kind: kind, ID: id, Err: err}
}

// Error 实现 error 接口
func (e *Error) Error() string {
	switch {
	case e.ID.IsZero() && e.Err == nil:
		return string(e.Kind)
	case e.ID.IsZero():
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.ID)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.ID, e.Err)
	}
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf 提取错误的类别，无法识别时返回空
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind 判断错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsTransient 判断错误是否为上游短暂故障，短暂故障可重试或降级为过期快照
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindUpstreamUnavailable, KindUpstreamTimeout:
		return true
	default:
		return false
	}
}

// WrapFetchError 把传输层错误归类为领域错误，context 截止映射为上游超时
func WrapFetchError(id AssetIdentifier, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindUpstreamTimeout, id, err)
	}
	return NewError(KindUpstreamUnavailable, id, err)
}
