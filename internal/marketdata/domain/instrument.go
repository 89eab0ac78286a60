package domain

import (
	"time"

	"gorm.io/gorm"
)

// Instrument 金融商品目录实体，随刷新结果自动登记
type Instrument struct {
	gorm.Model
	// AssetClass 资产类别
	AssetClass string `gorm:"column:asset_class;type:varchar(10);uniqueIndex:uq_instrument;not null"`
	// Symbol 规范化符号
	Symbol string `gorm:"column:symbol;type:varchar(20);uniqueIndex:uq_instrument;not null"`
	// Name 商品名称
	Name string `gorm:"column:name;type:varchar(100)"`
	// Currency 计价币种
	Currency string `gorm:"column:currency;type:varchar(10);not null;default:TWD"`
	// LastSeenAt 最近一次出现在刷新结果中的时间（毫秒）
	LastSeenAt int64 `gorm:"column:last_seen_at;type:bigint"`
}

// NewInstrumentFromSnapshot 由快照构造商品目录行
func NewInstrumentFromSnapshot(snap *AssetSnapshot, seenAt time.Time) *Instrument {
	return &Instrument{
		AssetClass: string(snap.ID.Class),
		Symbol:     snap.ID.Symbol,
		Name:       snap.Name,
		Currency:   snap.Currency,
		LastSeenAt: seenAt.UnixMilli(),
	}
}
