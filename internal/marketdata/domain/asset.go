// Package domain 行情聚合服务的领域模型、值对象、交易日历、领域服务与仓储接口
package domain

import (
	"fmt"
	"strings"
)

// AssetClass 资产类别
type AssetClass string

const (
	// AssetClassTwEquity 台股现货
	AssetClassTwEquity AssetClass = "tw"
	// AssetClassUsEquity 美股现货
	AssetClassUsEquity AssetClass = "us"
	// AssetClassFuture 台指期货
	AssetClassFuture AssetClass = "futures"
)

// AllAssetClasses 全部已知资产类别
func AllAssetClasses() []AssetClass {
	return []AssetClass{AssetClassTwEquity, AssetClassUsEquity, AssetClassFuture}
}

// ParseAssetClass 解析资产类别字符串，大小写不敏感
func ParseAssetClass(s string) (AssetClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tw", "tw_equity":
		return AssetClassTwEquity, nil
	case "us", "us_equity":
		return AssetClassUsEquity, nil
	case "futures", "future":
		return AssetClassFuture, nil
	default:
		return "", NewError(KindInvalidSymbolFormat, AssetIdentifier{}, fmt.Errorf("unknown asset class %q", s))
	}
}

// AssetIdentifier 资产标识，由资产类别与规范化后的符号组成
type AssetIdentifier struct {
	Class  AssetClass `json:"asset_class"`
	Symbol string     `json:"symbol"`
}

// String 返回 "class:symbol" 形式的标识，用作缓存键与消息键
func (id AssetIdentifier) String() string {
	return string(id.Class) + ":" + id.Symbol
}

// IsZero 判断是否为空标识
func (id AssetIdentifier) IsZero() bool {
	return id.Class == "" && id.Symbol == ""
}
