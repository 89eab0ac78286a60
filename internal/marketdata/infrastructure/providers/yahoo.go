package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
)

// YahooProvider 美股行情适配器，走 Yahoo Finance 的报价接口
type YahooProvider struct{}

// NewYahooProvider 创建美股适配器
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{}
}

func (p *YahooProvider) Name() string { return "yahoo" }

func (p *YahooProvider) Class() domain.AssetClass { return domain.AssetClassUsEquity }

// Fetch 拉取单档美股快照。底层客户端不感知 context，
// 借协程加 select 补上取消语义，超时后结果直接丢弃。
func (p *YahooProvider) Fetch(ctx context.Context, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
	type result struct {
		q   *finance.Quote
		err error
	}
	ch := make(chan result, 1)
	go func() {
		q, err := quote.Get(id.Symbol)
		ch <- result{q: q, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, domain.WrapFetchError(id, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, domain.WrapFetchError(id, r.err)
		}
		if r.q == nil {
			return nil, domain.NewError(domain.KindUnknownSymbol, id,
				fmt.Errorf("yahoo 查无此档"))
		}
		return p.toSnapshot(id, r.q)
	}
}

func (p *YahooProvider) toSnapshot(id domain.AssetIdentifier, q *finance.Quote) (*domain.AssetSnapshot, error) {
	raw := q.RegularMarketPrice
	if raw == 0 {
		// 盘前或停牌时无最新成交价，退回昨收
		raw = q.RegularMarketPreviousClose
	}
	if raw == 0 {
		return nil, domain.NewError(domain.KindMalformedResponse, id,
			fmt.Errorf("yahoo 回报无可用价格"))
	}

	asOf := time.Now()
	if q.RegularMarketTime > 0 {
		asOf = time.Unix(int64(q.RegularMarketTime), 0)
	}

	return &domain.AssetSnapshot{
		ID:        id,
		Name:      q.ShortName,
		LastPrice: decimal.NewFromFloat(raw),
		Currency:  "USD",
		AsOf:      asOf,
		Source:    p.Name(),
	}, nil
}
