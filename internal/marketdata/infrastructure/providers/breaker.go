package providers

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/pkg/logger"
	"github.com/fynnwu/marketdata/pkg/metrics"
)

// BreakerProvider 带熔断的适配器装饰器。只有瞬时性失败计入熔断统计，
// 查无此档等确定性结果原样透传，不应拖垮整个通路。
type BreakerProvider struct {
	inner   domain.Provider
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

// NewBreakerProvider 包装适配器，连续五次瞬时失败后断开 30 秒
func NewBreakerProvider(inner domain.Provider, m *metrics.Metrics) *BreakerProvider {
	p := &BreakerProvider{
		inner:   inner,
		metrics: m,
	}

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsTransient(err)
		},
		OnStateChange: p.onStateChange,
	})
	return p
}

func (p *BreakerProvider) Name() string { return p.inner.Name() }

func (p *BreakerProvider) Class() domain.AssetClass { return p.inner.Class() }

// Fetch 经熔断器转发拉取请求，断路期间直接按上游不可用回报
func (p *BreakerProvider) Fetch(ctx context.Context, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
	started := time.Now()
	value, err := p.breaker.Execute(func() (interface{}, error) {
		return p.inner.Fetch(ctx, id)
	})
	p.observe(started, err)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.NewError(domain.KindUpstreamUnavailable, id, err)
		}
		return nil, err
	}
	return value.(*domain.AssetSnapshot), nil
}

func (p *BreakerProvider) observe(started time.Time, err error) {
	if p.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
	case err != nil && domain.IsTransient(err):
		outcome = "transient_error"
	case err != nil:
		outcome = "permanent_error"
	}
	p.metrics.UpstreamRequestsTotal.WithLabelValues(p.Name(), outcome).Inc()
	p.metrics.UpstreamRequestDuration.WithLabelValues(p.Name()).Observe(time.Since(started).Seconds())
}

func (p *BreakerProvider) onStateChange(name string, from, to gobreaker.State) {
	logger.Warn(context.Background(), "上游熔断器状态变更",
		"provider", name,
		"from", from.String(),
		"to", to.String(),
	)
	if p.metrics != nil {
		p.metrics.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
