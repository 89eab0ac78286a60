package memcache_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/internal/marketdata/infrastructure/memcache"
)

func tsmc() domain.AssetIdentifier {
	return domain.AssetIdentifier{Class: domain.AssetClassTwEquity, Symbol: "2330"}
}

func snapshotAt(price string, asOf time.Time) *domain.AssetSnapshot {
	return &domain.AssetSnapshot{
		Name:      "台積電",
		LastPrice: decimal.RequireFromString(price),
		Currency:  "TWD",
		AsOf:      asOf,
		Source:    "twse",
	}
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	c := memcache.New()
	snap, ok := c.Get(tsmc())
	require.False(t, ok)
	require.Nil(t, snap)
}

func TestPutAssignsIncreasingVersions(t *testing.T) {
	t.Parallel()

	c := memcache.New()
	id := tsmc()

	first := c.Put(id, snapshotAt("605.0", time.Now()))
	second := c.Put(id, snapshotAt("606.0", time.Now()))

	require.Equal(t, uint64(1), first.Version)
	require.Equal(t, uint64(2), second.Version)
	require.False(t, second.Stale)

	got, ok := c.Get(id)
	require.True(t, ok)
	require.Equal(t, uint64(2), got.Version)
	require.True(t, got.LastPrice.Equal(decimal.RequireFromString("606.0")))
}

func TestPutStoresCopy(t *testing.T) {
	t.Parallel()

	c := memcache.New()
	id := tsmc()

	in := snapshotAt("605.0", time.Now())
	stored := c.Put(id, in)

	in.Name = "mutated"
	stored.Stale = true

	got, ok := c.Get(id)
	require.True(t, ok)
	require.Equal(t, "台積電", got.Name)
	require.False(t, got.Stale)
}

func TestVersionsSurviveRemoval(t *testing.T) {
	t.Parallel()

	c := memcache.New()
	id := tsmc()

	c.Put(id, snapshotAt("605.0", time.Now()))
	c.Put(id, snapshotAt("606.0", time.Now()))
	c.Remove(id)

	_, ok := c.Get(id)
	require.False(t, ok)

	rebuilt := c.Put(id, snapshotAt("607.0", time.Now()))
	require.Equal(t, uint64(3), rebuilt.Version, "重建版本必须接续删除前的序列")
}

func TestSeedOnlyFillsEmptyEntry(t *testing.T) {
	t.Parallel()

	c := memcache.New()
	id := tsmc()

	warm := snapshotAt("600.0", time.Now().Add(-time.Minute))
	warm.Version = 7

	seeded := c.Seed(id, warm)
	require.Equal(t, uint64(7), seeded.Version)

	// 已有快照时 Seed 不覆盖
	again := snapshotAt("1.0", time.Now())
	again.Version = 99
	kept := c.Seed(id, again)
	require.Equal(t, uint64(7), kept.Version)
	require.True(t, kept.LastPrice.Equal(decimal.RequireFromString("600.0")))

	// 计数器已对齐到 7，下一次 Put 必须高于镜像版本
	next := c.Put(id, snapshotAt("601.0", time.Now()))
	require.Equal(t, uint64(8), next.Version)
}

func TestSeedNeverRewindsCounter(t *testing.T) {
	t.Parallel()

	c := memcache.New()
	id := tsmc()

	c.Put(id, snapshotAt("605.0", time.Now()))
	c.Put(id, snapshotAt("606.0", time.Now()))
	c.Remove(id)

	stale := snapshotAt("600.0", time.Now().Add(-time.Hour))
	stale.Version = 1

	seeded := c.Seed(id, stale)
	require.Equal(t, uint64(2), seeded.Version, "镜像快照的旧版本号不得使序列回退")
}

func TestTryBeginRefreshSingleClaimant(t *testing.T) {
	t.Parallel()

	c := memcache.New()
	id := tsmc()

	var claims, nilChannels atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			claimed, done := c.TryBeginRefresh(id)
			if claimed {
				claims.Add(1)
			} else if done == nil {
				nilChannels.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()
	require.Equal(t, int64(1), claims.Load(), "并发竞争下只允许一个认领者")
	require.Zero(t, nilChannels.Load(), "落选者必须拿到在途刷新的完成通道")
}

func TestEndRefreshWakesWaiters(t *testing.T) {
	t.Parallel()

	c := memcache.New()
	id := tsmc()

	claimed, _ := c.TryBeginRefresh(id)
	require.True(t, claimed)

	again, done := c.TryBeginRefresh(id)
	require.False(t, again)
	require.NotNil(t, done)

	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Put(id, snapshotAt("605.0", time.Now()))
		c.EndRefresh(id)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("等待通道未在刷新结束后关闭")
	}

	// 释放后可再次认领
	claimed, _ = c.TryBeginRefresh(id)
	require.True(t, claimed)
	c.EndRefresh(id)
}

func TestEndRefreshWithoutClaimIsNoop(t *testing.T) {
	t.Parallel()

	c := memcache.New()
	c.EndRefresh(tsmc())

	c.Put(tsmc(), snapshotAt("605.0", time.Now()))
	c.EndRefresh(tsmc())

	claimed, _ := c.TryBeginRefresh(tsmc())
	require.True(t, claimed)
	c.EndRefresh(tsmc())
	c.EndRefresh(tsmc())
}

func TestKeysAndLen(t *testing.T) {
	t.Parallel()

	c := memcache.New()
	require.Zero(t, c.Len())

	aapl := domain.AssetIdentifier{Class: domain.AssetClassUsEquity, Symbol: "AAPL"}
	c.Put(tsmc(), snapshotAt("605.0", time.Now()))
	c.Put(aapl, snapshotAt("231.5", time.Now()))
	require.Equal(t, 2, c.Len())
	require.ElementsMatch(t, []domain.AssetIdentifier{tsmc(), aapl}, c.Keys())

	// 删除后不再计入，认领中的空条目同样不计入
	c.Remove(aapl)
	txf := domain.AssetIdentifier{Class: domain.AssetClassFuture, Symbol: "TXFA24"}
	claimed, _ := c.TryBeginRefresh(txf)
	require.True(t, claimed)

	require.Equal(t, 1, c.Len())
	require.ElementsMatch(t, []domain.AssetIdentifier{tsmc()}, c.Keys())
	c.EndRefresh(txf)
}

func TestConcurrentPutsKeepVersionsDense(t *testing.T) {
	t.Parallel()

	c := memcache.New()
	id := tsmc()

	const writers = 16
	const perWriter = 25

	var wg sync.WaitGroup
	seen := make(chan uint64, writers*perWriter)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				stored := c.Put(id, snapshotAt("605.0", time.Now()))
				seen <- stored.Version
			}
		}()
	}
	wg.Wait()
	close(seen)

	versions := make(map[uint64]bool, writers*perWriter)
	for v := range seen {
		require.False(t, versions[v], "版本号不得重复分配")
		versions[v] = true
	}
	require.Len(t, versions, writers*perWriter)

	got, ok := c.Get(id)
	require.True(t, ok)
	require.Equal(t, uint64(writers*perWriter), got.Version)
}
