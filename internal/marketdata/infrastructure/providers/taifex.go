package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
)

// DefaultTAIFEXEndpoint 台湾期交所期货日行情接口
const DefaultTAIFEXEndpoint = "https://openapi.taifex.com.tw/v1/DailyMarketReportFut"

// TAIFEXProvider 台指期货行情适配器。上游按整表回报当日全部合约，
// 适配器在本地按商品代号与交割月份过滤。
type TAIFEXProvider struct {
	client   *resty.Client
	endpoint string
	location *time.Location
}

// NewTAIFEXProvider 创建期货适配器，endpoint 为空时使用官方接口
func NewTAIFEXProvider(endpoint string, timeout time.Duration) *TAIFEXProvider {
	if endpoint == "" {
		endpoint = DefaultTAIFEXEndpoint
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")

	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}

	return &TAIFEXProvider{
		client:   client,
		endpoint: endpoint,
		location: loc,
	}
}

func (p *TAIFEXProvider) Name() string { return "taifex" }

func (p *TAIFEXProvider) Class() domain.AssetClass { return domain.AssetClassFuture }

// taifexRow 日行情回报的单笔合约。ContractMonth 对月合约形如 "202401"，
// 周合约带 W 后缀，本服务只认月合约。
type taifexRow struct {
	Date            string `json:"Date"`
	Contract        string `json:"Contract"`
	ContractMonth   string `json:"ContractMonth(Week)"`
	Last            string `json:"Last"`
	SettlementPrice string `json:"SettlementPrice"`
	TradingSession  string `json:"TradingSession"`
}

// Fetch 拉取单一月合约的期货快照
func (p *TAIFEXProvider) Fetch(ctx context.Context, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
	product, month, year, err := domain.ParseFutureSymbol(id.Symbol)
	if err != nil {
		return nil, err
	}
	wantMonth := fmt.Sprintf("%d%02d", year, int(month))

	resp, err := p.client.R().
		SetContext(ctx).
		Get(p.endpoint)
	if err != nil {
		return nil, domain.WrapFetchError(id, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, domain.NewError(domain.KindUpstreamUnavailable, id,
			fmt.Errorf("taifex 回应状态码 %d", resp.StatusCode()))
	}

	var rows []taifexRow
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, domain.NewError(domain.KindMalformedResponse, id, err)
	}

	row, ok := p.pickRow(rows, product, wantMonth)
	if !ok {
		return nil, domain.NewError(domain.KindUnknownSymbol, id,
			fmt.Errorf("taifex 日行情无 %s %s 合约", product, wantMonth))
	}

	priceText := row.Last
	if priceText == "" || priceText == "-" {
		// 无成交时退回结算价
		priceText = row.SettlementPrice
	}
	if priceText == "" || priceText == "-" {
		return nil, domain.NewError(domain.KindMalformedResponse, id,
			fmt.Errorf("taifex 回报无可用价格"))
	}
	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return nil, domain.NewError(domain.KindMalformedResponse, id, err)
	}

	asOf := time.Now()
	if day, err := time.ParseInLocation("2006/01/02", row.Date, p.location); err == nil {
		// 日行情按日盘收盘时点记时
		asOf = day.Add(13*time.Hour + 45*time.Minute)
	}

	return &domain.AssetSnapshot{
		ID:        id,
		Name:      fmt.Sprintf("%s %s", row.Contract, row.ContractMonth),
		LastPrice: price,
		Currency:  "TWD",
		AsOf:      asOf,
		Source:    p.Name(),
	}, nil
}

// pickRow 在整表回报中匹配目标合约，同合约多时段回报时优先日盘
func (p *TAIFEXProvider) pickRow(rows []taifexRow, product, wantMonth string) (taifexRow, bool) {
	var fallback taifexRow
	var found bool
	for _, row := range rows {
		if row.Contract != product || row.ContractMonth != wantMonth {
			continue
		}
		if row.TradingSession == "" || row.TradingSession == "Regular" {
			return row, true
		}
		if !found {
			fallback = row
			found = true
		}
	}
	return fallback, found
}
