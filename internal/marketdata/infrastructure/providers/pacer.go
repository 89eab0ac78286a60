package providers

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
)

// PacedProvider 带限速的适配器装饰器，对单一上游的出站请求做令牌桶整流
type PacedProvider struct {
	inner   domain.Provider
	limiter *rate.Limiter
}

// NewPacedProvider 包装适配器，qps 与 burst 不合法时退回每秒一次
func NewPacedProvider(inner domain.Provider, qps float64, burst int) *PacedProvider {
	if qps <= 0 {
		qps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &PacedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(qps), burst),
	}
}

func (p *PacedProvider) Name() string { return p.inner.Name() }

func (p *PacedProvider) Class() domain.AssetClass { return p.inner.Class() }

// Fetch 先取令牌再转发，等待期间随 context 取消
func (p *PacedProvider) Fetch(ctx context.Context, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, domain.WrapFetchError(id, err)
	}
	return p.inner.Fetch(ctx, id)
}
