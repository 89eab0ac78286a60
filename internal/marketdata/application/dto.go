package application

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
)

// SnapshotDTO 对外快照视图，价格以字符串编码避免浮点截断，时间为毫秒时间戳
type SnapshotDTO struct {
	AssetClass string `json:"asset_class"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name,omitempty"`
	LastPrice  string `json:"last_price"`
	Currency   string `json:"currency"`
	AsOf       int64  `json:"as_of"`
	Version    uint64 `json:"version"`
	Stale      bool   `json:"stale"`
	Source     string `json:"source"`
}

func toSnapshotDTO(snap *domain.AssetSnapshot) *SnapshotDTO {
	if snap == nil {
		return nil
	}
	return &SnapshotDTO{
		AssetClass: string(snap.ID.Class),
		Symbol:     snap.ID.Symbol,
		Name:       snap.Name,
		LastPrice:  snap.LastPrice.String(),
		Currency:   snap.Currency,
		AsOf:       snap.AsOf.UnixMilli(),
		Version:    snap.Version,
		Stale:      snap.Stale,
		Source:     snap.Source,
	}
}

// SnapshotListDTO 批量查询结果。Stale 标记整批中是否有任何过期快照，
// Errors 按符号记录失败原因，部分失败不影响其余符号
type SnapshotListDTO struct {
	AssetClass string            `json:"asset_class"`
	Count      int               `json:"count"`
	Stale      bool              `json:"stale"`
	Snapshots  []*SnapshotDTO    `json:"snapshots"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// InstrumentDTO 商品目录视图
type InstrumentDTO struct {
	AssetClass string `json:"asset_class"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name,omitempty"`
	Currency   string `json:"currency"`
	LastSeenAt int64  `json:"last_seen_at"`
}

func toInstrumentDTO(ins *domain.Instrument) *InstrumentDTO {
	return &InstrumentDTO{
		AssetClass: ins.AssetClass,
		Symbol:     ins.Symbol,
		Name:       ins.Name,
		Currency:   ins.Currency,
		LastSeenAt: ins.LastSeenAt,
	}
}

// HistoryEntryDTO 快照刷新历史视图
type HistoryEntryDTO struct {
	AssetClass string `json:"asset_class"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name,omitempty"`
	LastPrice  string `json:"last_price"`
	Currency   string `json:"currency"`
	Version    uint64 `json:"version"`
	AsOf       int64  `json:"as_of"`
	Source     string `json:"source"`
	UsdTwdRate string `json:"usd_twd_rate,omitempty"`
	RecordedAt int64  `json:"recorded_at"`
}

func toHistoryEntryDTO(rec *domain.SnapshotRecord) *HistoryEntryDTO {
	dto := &HistoryEntryDTO{
		AssetClass: rec.AssetClass,
		Symbol:     rec.Symbol,
		Name:       rec.Name,
		LastPrice:  rec.LastPrice.String(),
		Currency:   rec.Currency,
		Version:    rec.Version,
		AsOf:       rec.AsOf,
		Source:     rec.Source,
		RecordedAt: rec.CreatedAt.UnixMilli(),
	}
	if !rec.UsdTwdRate.IsZero() {
		dto.UsdTwdRate = rec.UsdTwdRate.String()
	}
	return dto
}

// CalendarDTO 交易日历视图。闭市时 Status 取 market_closed 类别字符串
type CalendarDTO struct {
	AssetClass string   `json:"asset_class"`
	Calendar   string   `json:"calendar"`
	Timezone   string   `json:"timezone"`
	Open       bool     `json:"open"`
	Status     string   `json:"status"`
	Sessions   []string `json:"sessions"`
}

// FxRateDTO 汇率视图。Source 标记取值路径：upstream 为本次实拉，
// cache 为上游失败后沿用的旧值，fallback 为内置兜底值
type FxRateDTO struct {
	Pair   string `json:"pair"`
	Rate   string `json:"rate"`
	AsOf   int64  `json:"as_of"`
	Source string `json:"source"`
}

// ApplyPushedQuoteCommand 外部推送报价的写入命令
type ApplyPushedQuoteCommand struct {
	AssetClass string
	Symbol     string
	Price      decimal.Decimal
	Name       string
	Currency   string
	AsOf       time.Time
}
