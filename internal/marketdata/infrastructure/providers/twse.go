// Package providers 各资产类别的上游行情适配器，以及限速、熔断两个通用装饰器。
// 适配器只做协议转换与结果分类，重试与缓存策略由应用层负责。
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
)

// DefaultTWSEEndpoint 台湾证交所盘中行情接口
const DefaultTWSEEndpoint = "https://mis.twse.com.tw/stock/api/getStockInfo.jsp"

// TWSEProvider 台股现货行情适配器
type TWSEProvider struct {
	client   *resty.Client
	endpoint string
}

// NewTWSEProvider 创建台股适配器，endpoint 为空时使用官方接口
func NewTWSEProvider(endpoint string, timeout time.Duration) *TWSEProvider {
	if endpoint == "" {
		endpoint = DefaultTWSEEndpoint
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")

	return &TWSEProvider{
		client:   client,
		endpoint: endpoint,
	}
}

func (p *TWSEProvider) Name() string { return "twse" }

func (p *TWSEProvider) Class() domain.AssetClass { return domain.AssetClassTwEquity }

// twseRow 盘中行情的单档回报。z 为最新成交价，盘前或无成交时为 "-"，
// 此时退回昨收 y。tlong 是撮合时间的毫秒时间戳字符串。
type twseRow struct {
	Code      string `json:"c"`
	Name      string `json:"n"`
	LastPrice string `json:"z"`
	PrevClose string `json:"y"`
	TimeMs    string `json:"tlong"`
}

type twseResponse struct {
	MsgArray []twseRow `json:"msgArray"`
	RtCode   string    `json:"rtcode"`
}

// Fetch 拉取单档台股快照
func (p *TWSEProvider) Fetch(ctx context.Context, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ex_ch": "tse_" + id.Symbol + ".tw",
			"json":  "1",
			"delay": "0",
		}).
		Get(p.endpoint)
	if err != nil {
		return nil, domain.WrapFetchError(id, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, domain.NewError(domain.KindUpstreamUnavailable, id,
			fmt.Errorf("twse 回应状态码 %d", resp.StatusCode()))
	}

	var payload twseResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, domain.NewError(domain.KindMalformedResponse, id, err)
	}
	if len(payload.MsgArray) == 0 {
		return nil, domain.NewError(domain.KindUnknownSymbol, id,
			fmt.Errorf("twse 查无此档, rtcode=%s", payload.RtCode))
	}

	row := payload.MsgArray[0]
	priceText := row.LastPrice
	if priceText == "" || priceText == "-" {
		priceText = row.PrevClose
	}
	if priceText == "" || priceText == "-" {
		return nil, domain.NewError(domain.KindMalformedResponse, id,
			fmt.Errorf("twse 回报无可用价格"))
	}
	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return nil, domain.NewError(domain.KindMalformedResponse, id, err)
	}

	asOf := time.Now()
	if ms, err := strconv.ParseInt(row.TimeMs, 10, 64); err == nil && ms > 0 {
		asOf = time.UnixMilli(ms)
	}

	return &domain.AssetSnapshot{
		ID:        id,
		Name:      row.Name,
		LastPrice: price,
		Currency:  "TWD",
		AsOf:      asOf,
		Source:    p.Name(),
		Raw:       json.RawMessage(resp.Body()),
	}, nil
}
