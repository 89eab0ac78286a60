package providers_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/internal/marketdata/infrastructure/providers"
)

// scriptedProvider 按预设剧本逐次回报的假适配器
type scriptedProvider struct {
	calls atomic.Int64
	fetch func(call int64, id domain.AssetIdentifier) (*domain.AssetSnapshot, error)
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Class() domain.AssetClass { return domain.AssetClassTwEquity }

func (s *scriptedProvider) Fetch(ctx context.Context, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
	return s.fetch(s.calls.Add(1), id)
}

func okSnapshot(id domain.AssetIdentifier) *domain.AssetSnapshot {
	return &domain.AssetSnapshot{
		ID:        id,
		LastPrice: decimal.RequireFromString("100"),
		Currency:  "TWD",
		AsOf:      time.Now(),
		Source:    "scripted",
	}
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	t.Parallel()

	inner := &scriptedProvider{fetch: func(call int64, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
		return okSnapshot(id), nil
	}}
	p := providers.NewBreakerProvider(inner, nil)
	require.Equal(t, "scripted", p.Name())
	require.Equal(t, domain.AssetClassTwEquity, p.Class())

	snap, err := p.Fetch(context.Background(), twID("2330"))
	require.NoError(t, err)
	require.Equal(t, "2330", snap.ID.Symbol)
	require.Equal(t, int64(1), inner.calls.Load())
}

func TestBreakerOpensAfterConsecutiveTransientFailures(t *testing.T) {
	t.Parallel()

	inner := &scriptedProvider{fetch: func(call int64, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
		return nil, domain.NewError(domain.KindUpstreamTimeout, id, context.DeadlineExceeded)
	}}
	p := providers.NewBreakerProvider(inner, nil)

	for i := 0; i < 5; i++ {
		_, err := p.Fetch(context.Background(), twID("2330"))
		require.Error(t, err)
		require.Equal(t, domain.KindUpstreamTimeout, domain.KindOf(err))
	}
	require.Equal(t, int64(5), inner.calls.Load())

	// 第六次起熔断器已断开，请求不再到达上游
	_, err := p.Fetch(context.Background(), twID("2330"))
	require.Error(t, err)
	require.Equal(t, domain.KindUpstreamUnavailable, domain.KindOf(err))
	require.Equal(t, int64(5), inner.calls.Load())
}

func TestBreakerIgnoresPermanentFailures(t *testing.T) {
	t.Parallel()

	inner := &scriptedProvider{fetch: func(call int64, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
		return nil, domain.NewError(domain.KindUnknownSymbol, id, nil)
	}}
	p := providers.NewBreakerProvider(inner, nil)

	// 查无此档是确定性结果，连续出现也不触发熔断
	for i := 0; i < 12; i++ {
		_, err := p.Fetch(context.Background(), twID("9999"))
		require.Error(t, err)
		require.Equal(t, domain.KindUnknownSymbol, domain.KindOf(err))
	}
	require.Equal(t, int64(12), inner.calls.Load())
}

func TestBreakerRecoversAfterSuccess(t *testing.T) {
	t.Parallel()

	inner := &scriptedProvider{fetch: func(call int64, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
		if call <= 4 {
			return nil, domain.NewError(domain.KindUpstreamUnavailable, id, nil)
		}
		return okSnapshot(id), nil
	}}
	p := providers.NewBreakerProvider(inner, nil)

	for i := 0; i < 4; i++ {
		_, err := p.Fetch(context.Background(), twID("2330"))
		require.Error(t, err)
	}

	// 第五次成功，连续失败计数清零，熔断器保持闭合
	snap, err := p.Fetch(context.Background(), twID("2330"))
	require.NoError(t, err)
	require.NotNil(t, snap)

	snap, err = p.Fetch(context.Background(), twID("2330"))
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, int64(6), inner.calls.Load())
}
