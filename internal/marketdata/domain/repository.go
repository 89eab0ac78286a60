package domain

import "context"

// SnapshotCache 进程内快照缓存端口。版本号按标识单调递增，
// 跨删除与重建仍不回退；TryBeginRefresh/EndRefresh 保证同一标识同时只有一个刷新。
type SnapshotCache interface {
	// Get 读取当前快照，条目不存在或已被清空时返回 (nil, false)
	Get(id AssetIdentifier) (*AssetSnapshot, bool)
	// Put 整体替换快照，分配下一个版本号，返回实际存储的拷贝
	Put(id AssetIdentifier, snapshot *AssetSnapshot) *AssetSnapshot
	// Seed 仅当条目为空时装入快照（温启动），保留快照自带的版本号且不回退计数器
	Seed(id AssetIdentifier, snapshot *AssetSnapshot) *AssetSnapshot
	// TryBeginRefresh 原子地认领刷新权。返回 true 表示本调用方获得刷新权；
	// 返回 false 时第二个返回值是在途刷新的完成通道，可等待
	TryBeginRefresh(id AssetIdentifier) (bool, <-chan struct{})
	// EndRefresh 释放刷新权并唤醒等待者，成功认领后必须恰好调用一次
	EndRefresh(id AssetIdentifier)
	// Remove 清空快照但保留版本计数器
	Remove(id AssetIdentifier)
	// Keys 返回当前持有快照的标识
	Keys() []AssetIdentifier
	// Len 返回当前持有的快照数量
	Len() int
}

// SnapshotHistoryRepository 快照刷新历史仓储
type SnapshotHistoryRepository interface {
	Save(ctx context.Context, record *SnapshotRecord) error
	ListBySymbol(ctx context.Context, class AssetClass, symbol string, limit int) ([]*SnapshotRecord, error)
}

// InstrumentRepository 金融商品目录仓储
type InstrumentRepository interface {
	Upsert(ctx context.Context, instrument *Instrument) error
	GetBySymbol(ctx context.Context, class AssetClass, symbol string) (*Instrument, error)
	ListByClass(ctx context.Context, class AssetClass) ([]*Instrument, error)
}

// SnapshotMirror 快照二级镜像（Redis），用于进程重启后的温启动
type SnapshotMirror interface {
	Load(ctx context.Context, id AssetIdentifier) (*AssetSnapshot, error)
	Store(ctx context.Context, snapshot *AssetSnapshot) error
	Delete(ctx context.Context, id AssetIdentifier) error
}

// PricePublisher 价格更新事件发布端口
type PricePublisher interface {
	PublishPriceUpdated(ctx context.Context, snapshot *AssetSnapshot) error
}
