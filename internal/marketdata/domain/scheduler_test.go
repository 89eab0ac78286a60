package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
)

func newTwScheduler(t *testing.T) (*domain.Scheduler, *domain.TradingCalendar) {
	t.Helper()
	cal, err := domain.BuiltinCalendar("twse")
	require.NoError(t, err)
	s := domain.NewScheduler()
	s.Bind(domain.AssetClassTwEquity, domain.RefreshPolicy{
		FreshnessWindow: 60 * time.Second,
		FetchTimeout:    5 * time.Second,
	}, cal)
	return s, cal
}

func twSnapshot(asOf time.Time) *domain.AssetSnapshot {
	return &domain.AssetSnapshot{
		ID:        domain.AssetIdentifier{Class: domain.AssetClassTwEquity, Symbol: "2330"},
		LastPrice: decimal.NewFromInt(900),
		Currency:  "TWD",
		AsOf:      asOf,
	}
}

func TestIsStaleNilSnapshot(t *testing.T) {
	t.Parallel()

	s, cal := newTwScheduler(t)
	// 闭市时间也判过期：冷启动必须触发拉取
	now := time.Date(2025, 3, 4, 22, 0, 0, 0, cal.Location)
	require.True(t, s.IsStale(nil, now))
}

func TestIsStaleWithinWindow(t *testing.T) {
	t.Parallel()

	s, cal := newTwScheduler(t)
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, cal.Location)
	snap := twSnapshot(now.Add(-30 * time.Second))
	require.False(t, s.IsStale(snap, now))

	// 恰好等于窗口不算过期
	snap = twSnapshot(now.Add(-60 * time.Second))
	require.False(t, s.IsStale(snap, now))
}

func TestIsStaleAgedWhileMarketOpen(t *testing.T) {
	t.Parallel()

	s, cal := newTwScheduler(t)
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, cal.Location)
	snap := twSnapshot(now.Add(-61 * time.Second))
	require.True(t, s.IsStale(snap, now))
}

func TestIsStaleAgedWhileMarketClosed(t *testing.T) {
	t.Parallel()

	s, cal := newTwScheduler(t)
	// 同一份 61 秒旧的快照，22:00 闭市时不过期
	now := time.Date(2025, 3, 4, 22, 0, 0, 0, cal.Location)
	snap := twSnapshot(now.Add(-61 * time.Second))
	require.False(t, s.IsStale(snap, now))

	// 隔夜更旧的快照闭市期间同样不过期
	snap = twSnapshot(now.Add(-8 * time.Hour))
	require.False(t, s.IsStale(snap, now))
}

func TestIsStaleFutureClosedMarketGap(t *testing.T) {
	t.Parallel()

	cal, err := domain.BuiltinCalendar("taifex")
	require.NoError(t, err)
	s := domain.NewScheduler()
	s.Bind(domain.AssetClassFuture, domain.RefreshPolicy{
		FreshnessWindow: 30 * time.Second,
		FetchTimeout:    5 * time.Second,
	}, cal)

	// 2025-03-04 周二 06:00，处于夜盘收盘（05:00）与日盘开盘（08:45）之间
	now := time.Date(2025, 3, 4, 6, 0, 0, 0, cal.Location)
	snap := &domain.AssetSnapshot{
		ID:   domain.AssetIdentifier{Class: domain.AssetClassFuture, Symbol: "TXFA24"},
		AsOf: now.Add(-2 * time.Hour),
	}
	require.False(t, s.IsStale(snap, now))

	// 日盘开盘后立即过期
	dayOpen := time.Date(2025, 3, 4, 9, 0, 0, 0, cal.Location)
	require.True(t, s.IsStale(snap, dayOpen))
}

func TestIsStaleUnboundClass(t *testing.T) {
	t.Parallel()

	s := domain.NewScheduler()
	snap := twSnapshot(time.Now())
	require.True(t, s.IsStale(snap, time.Now()))
}

func TestSchedulerAccessors(t *testing.T) {
	t.Parallel()

	s, cal := newTwScheduler(t)

	p, ok := s.PolicyFor(domain.AssetClassTwEquity)
	require.True(t, ok)
	require.Equal(t, 60*time.Second, p.FreshnessWindow)

	got, ok := s.CalendarFor(domain.AssetClassTwEquity)
	require.True(t, ok)
	require.Equal(t, cal.Name, got.Name)

	_, ok = s.PolicyFor(domain.AssetClassUsEquity)
	require.False(t, ok)
}
