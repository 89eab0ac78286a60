// Package mysql 行情聚合服务的 MySQL 仓储实现
package mysql

import (
	"context"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/pkg/db"
)

type snapshotHistoryRepository struct {
	db *db.DB
}

// NewSnapshotHistoryRepository 创建快照刷新历史仓储实例
func NewSnapshotHistoryRepository(database *db.DB) domain.SnapshotHistoryRepository {
	return &snapshotHistoryRepository{db: database}
}

func (r *snapshotHistoryRepository) Save(ctx context.Context, record *domain.SnapshotRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *snapshotHistoryRepository) ListBySymbol(ctx context.Context, class domain.AssetClass, symbol string, limit int) ([]*domain.SnapshotRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []*domain.SnapshotRecord
	err := r.db.WithContext(ctx).
		Where("asset_class = ? AND symbol = ?", string(class), symbol).
		Order("as_of desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
