package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider 上游行情源端口，每个资产类别一个实现
type Provider interface {
	// Name 返回数据源名称，用于日志与指标
	Name() string
	// Class 返回服务的资产类别
	Class() AssetClass
	// Fetch 拉取指定资产的最新快照。实现必须遵守 ctx 的取消与截止，
	// 成功返回的快照标识必须等于入参，AsOf 不得为零值。
	Fetch(ctx context.Context, id AssetIdentifier) (*AssetSnapshot, error)
}

// RateSource 美元兑台币汇率源端口
type RateSource interface {
	// UsdTwd 返回当前美元兑台币汇率
	UsdTwd(ctx context.Context) (decimal.Decimal, error)
}
