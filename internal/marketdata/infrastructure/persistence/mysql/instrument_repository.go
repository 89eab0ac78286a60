package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/pkg/db"
)

type instrumentRepository struct {
	db *db.DB
}

// NewInstrumentRepository 创建金融商品目录仓储实例
func NewInstrumentRepository(database *db.DB) domain.InstrumentRepository {
	return &instrumentRepository{db: database}
}

func (r *instrumentRepository) Upsert(ctx context.Context, instrument *domain.Instrument) error {
	return r.db.UpsertWithConflict(ctx, instrument,
		[]string{"asset_class", "symbol"},
		[]string{"name", "currency", "last_seen_at", "updated_at"},
	)
}

func (r *instrumentRepository) GetBySymbol(ctx context.Context, class domain.AssetClass, symbol string) (*domain.Instrument, error) {
	var instrument domain.Instrument
	err := r.db.WithContext(ctx).
		Where("asset_class = ? AND symbol = ?", string(class), symbol).
		First(&instrument).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &instrument, nil
}

func (r *instrumentRepository) ListByClass(ctx context.Context, class domain.AssetClass) ([]*domain.Instrument, error) {
	var instruments []*domain.Instrument
	err := r.db.WithContext(ctx).
		Where("asset_class = ?", string(class)).
		Order("symbol asc").
		Find(&instruments).Error
	if err != nil {
		return nil, err
	}
	return instruments, nil
}
