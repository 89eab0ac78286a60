// Package messaging 行情聚合服务的事件发布实现
package messaging

import (
	"context"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/pkg/mq"
)

// PriceUpdatedEvent 价格更新事件载荷，随每次成功刷新发布
type PriceUpdatedEvent struct {
	AssetClass string `json:"asset_class"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name,omitempty"`
	LastPrice  string `json:"last_price"`
	Currency   string `json:"currency"`
	AsOf       int64  `json:"as_of"`
	Version    uint64 `json:"version"`
	Source     string `json:"source"`
}

type kafkaPricePublisher struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaPricePublisher 创建价格更新事件发布器
func NewKafkaPricePublisher(producer *mq.KafkaProducer, topic string) domain.PricePublisher {
	return &kafkaPricePublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *kafkaPricePublisher) PublishPriceUpdated(ctx context.Context, snapshot *domain.AssetSnapshot) error {
	event := PriceUpdatedEvent{
		AssetClass: string(snapshot.ID.Class),
		Symbol:     snapshot.ID.Symbol,
		Name:       snapshot.Name,
		LastPrice:  snapshot.LastPrice.String(),
		Currency:   snapshot.Currency,
		AsOf:       snapshot.AsOf.UnixMilli(),
		Version:    snapshot.Version,
		Source:     snapshot.Source,
	}
	return p.producer.SendMessage(ctx, p.topic, snapshot.ID.String(), event)
}
