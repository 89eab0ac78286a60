package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fynnwu/marketdata/internal/marketdata/application"
	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/pkg/logger"
	"github.com/fynnwu/marketdata/pkg/metrics"
	"github.com/fynnwu/marketdata/pkg/mq"
)

// QuotePushHandler 消费外部推送的报价事件并写入快照缓存。
// 解析失败或永久性拒收的消息转入死信队列，短暂性失败只记日志，
// 等上游重新推送。
type QuotePushHandler struct {
	svc     *application.MarketDataService
	dlq     *mq.DeadLetterQueue
	metrics *metrics.Metrics
}

// NewQuotePushHandler 创建报价推送处理器，dlq 与 m 可为 nil
func NewQuotePushHandler(svc *application.MarketDataService, dlq *mq.DeadLetterQueue, m *metrics.Metrics) *QuotePushHandler {
	return &QuotePushHandler{svc: svc, dlq: dlq, metrics: m}
}

// HandleQuote 处理单条报价推送消息
func (h *QuotePushHandler) HandleQuote(ctx context.Context, msg *mq.Message) error {
	var event struct {
		AssetClass string  `json:"asset_class"`
		Symbol     string  `json:"symbol"`
		Price      float64 `json:"price"`
		Name       string  `json:"name"`
		Currency   string  `json:"currency"`
		Timestamp  int64   `json:"timestamp"`
	}
	if err := msg.UnmarshalPayload(&event); err != nil {
		h.toDeadLetter(ctx, msg, "payload is not valid json", err)
		return err
	}

	var asOf time.Time
	if event.Timestamp > 0 {
		asOf = time.UnixMilli(event.Timestamp)
	}

	err := h.svc.ApplyPushedQuote(ctx, application.ApplyPushedQuoteCommand{
		AssetClass: event.AssetClass,
		Symbol:     event.Symbol,
		Price:      decimal.NewFromFloat(event.Price),
		Name:       event.Name,
		Currency:   event.Currency,
		AsOf:       asOf,
	})
	if err != nil {
		if !domain.IsTransient(err) {
			h.toDeadLetter(ctx, msg, "quote rejected", err)
		}
		return err
	}

	if h.metrics != nil {
		h.metrics.EventsConsumedTotal.Inc()
	}
	return nil
}

// Subscribe 订阅消费者并阻塞处理，ctx 取消后返回
func (h *QuotePushHandler) Subscribe(ctx context.Context, consumer *mq.KafkaConsumer) {
	consumer.Start(ctx, 1, h.HandleQuote)
}

func (h *QuotePushHandler) toDeadLetter(ctx context.Context, msg *mq.Message, reason string, cause error) {
	if h.dlq == nil {
		return
	}
	if err := h.dlq.Send(ctx, msg, reason, cause); err != nil {
		logger.Error(ctx, "报价消息转入死信队列失败", "key", msg.Key, "error", err)
	}
}
