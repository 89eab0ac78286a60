package application_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fynnwu/marketdata/internal/marketdata/application"
)

type fakeRateSource struct {
	calls atomic.Int64
	rate  func(call int64) (decimal.Decimal, error)
}

func (s *fakeRateSource) UsdTwd(ctx context.Context) (decimal.Decimal, error) {
	return s.rate(s.calls.Add(1))
}

func TestFXServiceCachesWithinTTL(t *testing.T) {
	t.Parallel()

	source := &fakeRateSource{rate: func(call int64) (decimal.Decimal, error) {
		return decimal.RequireFromString("32.45"), nil
	}}
	svc := application.NewFXService(source, time.Hour)

	rate, origin := svc.Rate(context.Background())
	require.Equal(t, "32.45", rate.String())
	require.Equal(t, "upstream", origin)

	rate, origin = svc.Rate(context.Background())
	require.Equal(t, "32.45", rate.String())
	require.Equal(t, "upstream", origin)
	require.Equal(t, int64(1), source.calls.Load(), "TTL 内不重复拉取")
}

func TestFXServiceFallbackWithoutSource(t *testing.T) {
	t.Parallel()

	svc := application.NewFXService(nil, time.Hour)
	rate, origin := svc.Rate(context.Background())
	require.Equal(t, "32.5", rate.String())
	require.Equal(t, "fallback", origin)
}

func TestFXServiceFallbackOnColdFailure(t *testing.T) {
	t.Parallel()

	source := &fakeRateSource{rate: func(call int64) (decimal.Decimal, error) {
		return decimal.Zero, fmt.Errorf("upstream down")
	}}
	svc := application.NewFXService(source, time.Hour)

	rate, origin := svc.Rate(context.Background())
	require.Equal(t, "32.5", rate.String())
	require.Equal(t, "fallback", origin)
}

func TestFXServiceServesOldValueOnRefreshFailure(t *testing.T) {
	t.Parallel()

	source := &fakeRateSource{rate: func(call int64) (decimal.Decimal, error) {
		if call == 1 {
			return decimal.RequireFromString("32.45"), nil
		}
		return decimal.Zero, fmt.Errorf("upstream down")
	}}
	svc := application.NewFXService(source, 30*time.Millisecond)

	rate, origin := svc.Rate(context.Background())
	require.Equal(t, "32.45", rate.String())
	require.Equal(t, "upstream", origin)

	time.Sleep(50 * time.Millisecond)

	rate, origin = svc.Rate(context.Background())
	require.Equal(t, "32.45", rate.String())
	require.Equal(t, "cache", origin)
	require.Equal(t, int64(2), source.calls.Load())
}

func TestFXServiceUsdTwdView(t *testing.T) {
	t.Parallel()

	source := &fakeRateSource{rate: func(call int64) (decimal.Decimal, error) {
		return decimal.RequireFromString("31.975"), nil
	}}
	svc := application.NewFXService(source, time.Hour)

	dto := svc.UsdTwd(context.Background())
	require.Equal(t, "USDTWD", dto.Pair)
	require.Equal(t, "31.975", dto.Rate)
	require.Equal(t, "upstream", dto.Source)
	require.Positive(t, dto.AsOf)
}
