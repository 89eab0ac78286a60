package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssetSnapshot 资产快照值对象。写入缓存后视为不可变，
// 降级返回的过期快照是带 Stale 标记的拷贝，原值不变。
type AssetSnapshot struct {
	// ID 资产标识
	ID AssetIdentifier `json:"id"`
	// Name 资产名称
	Name string `json:"name,omitempty"`
	// LastPrice 最新成交价
	LastPrice decimal.Decimal `json:"last_price"`
	// Currency 计价币种
	Currency string `json:"currency"`
	// AsOf 上游产生该数据的时间
	AsOf time.Time `json:"as_of"`
	// Version 单调递增的版本号，由缓存在写入时分配
	Version uint64 `json:"version"`
	// Stale 是否为降级返回的过期数据
	Stale bool `json:"stale"`
	// Source 数据来源
	Source string `json:"source"`
	// Raw 上游原始报文，留作审计
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Clone 返回快照的拷贝
func (s *AssetSnapshot) Clone() *AssetSnapshot {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// MarkStale 返回标记为过期的拷贝
func (s *AssetSnapshot) MarkStale() *AssetSnapshot {
	cp := s.Clone()
	cp.Stale = true
	return cp
}

// Age 快照相对 now 的年龄
func (s *AssetSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.AsOf)
}

// SnapshotRecord 快照刷新历史实体，每次成功刷新追加一行
type SnapshotRecord struct {
	gorm.Model
	// AssetClass 资产类别
	AssetClass string `gorm:"column:asset_class;type:varchar(10);index:idx_class_symbol;not null"`
	// Symbol 规范化符号
	Symbol string `gorm:"column:symbol;type:varchar(20);index:idx_class_symbol;not null"`
	// Name 资产名称
	Name string `gorm:"column:name;type:varchar(100)"`
	// LastPrice 最新成交价
	LastPrice decimal.Decimal `gorm:"column:last_price;type:decimal(32,18);not null"`
	// Currency 计价币种
	Currency string `gorm:"column:currency;type:varchar(10);not null"`
	// Version 快照版本号
	Version uint64 `gorm:"column:version;type:bigint unsigned;not null"`
	// AsOf 上游数据时间（毫秒）
	AsOf int64 `gorm:"column:as_of;type:bigint;not null"`
	// Source 数据来源
	Source string `gorm:"column:source;type:varchar(50)"`
	// UsdTwdRate 写入时的美元兑台币汇率
	UsdTwdRate decimal.Decimal `gorm:"column:usd_twd_rate;type:decimal(32,18)"`
}

// NewSnapshotRecord 由快照构造历史行
func NewSnapshotRecord(snap *AssetSnapshot, usdTwdRate decimal.Decimal) *SnapshotRecord {
	return &SnapshotRecord{
		AssetClass: string(snap.ID.Class),
		Symbol:     snap.ID.Symbol,
		Name:       snap.Name,
		LastPrice:  snap.LastPrice,
		Currency:   snap.Currency,
		Version:    snap.Version,
		AsOf:       snap.AsOf.UnixMilli(),
		Source:     snap.Source,
		UsdTwdRate: usdTwdRate,
	}
}
