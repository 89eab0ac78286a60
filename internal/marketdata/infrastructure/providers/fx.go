package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// DefaultFXEndpoint 美元兑各币种的公开汇率接口
const DefaultFXEndpoint = "https://open.er-api.com/v6/latest/USD"

// ERAPIRateSource domain.RateSource 的实现，取美元兑台币即期汇率
type ERAPIRateSource struct {
	client   *resty.Client
	endpoint string
}

// NewERAPIRateSource 创建汇率源，endpoint 为空时使用公开接口
func NewERAPIRateSource(endpoint string, timeout time.Duration) *ERAPIRateSource {
	if endpoint == "" {
		endpoint = DefaultFXEndpoint
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")

	return &ERAPIRateSource{
		client:   client,
		endpoint: endpoint,
	}
}

type erapiResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// UsdTwd 返回 1 美元折合的台币数
func (s *ERAPIRateSource) UsdTwd(ctx context.Context) (decimal.Decimal, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.endpoint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("拉取汇率失败: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Zero, fmt.Errorf("汇率接口回应状态码 %d", resp.StatusCode())
	}

	var payload erapiResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return decimal.Zero, fmt.Errorf("解析汇率回报失败: %w", err)
	}
	if payload.Result != "success" {
		return decimal.Zero, fmt.Errorf("汇率接口回报 result=%s", payload.Result)
	}
	rate, ok := payload.Rates["TWD"]
	if !ok || rate <= 0 {
		return decimal.Zero, fmt.Errorf("汇率回报缺少有效的 TWD 汇率")
	}
	return decimal.NewFromFloat(rate), nil
}
