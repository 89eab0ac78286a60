package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/pkg/logger"
)

// fallbackUsdTwd 汇率兜底值，上游不可用且无旧值时使用
var fallbackUsdTwd = decimal.RequireFromString("32.5")

type fxEntry struct {
	rate      decimal.Decimal
	fetchedAt time.Time
	source    string
}

// FXService 美元兑台币汇率服务。汇率按 TTL 缓存，过期后单飞重拉，
// 上游失败时依次降级为旧值、内置兜底值，对调用方永不报错。
type FXService struct {
	source domain.RateSource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current atomic.Value
}

// NewFXService 创建汇率服务，ttl 不合法时退回一小时
func NewFXService(source domain.RateSource, ttl time.Duration) *FXService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &FXService{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Rate 返回当前汇率与取值路径
func (s *FXService) Rate(ctx context.Context) (decimal.Decimal, string) {
	e := s.entry(ctx)
	return e.rate, e.source
}

// UsdTwd 返回汇率视图
func (s *FXService) UsdTwd(ctx context.Context) *FxRateDTO {
	e := s.entry(ctx)
	return &FxRateDTO{
		Pair:   "USDTWD",
		Rate:   e.rate.String(),
		AsOf:   e.fetchedAt.UnixMilli(),
		Source: e.source,
	}
}

func (s *FXService) entry(ctx context.Context) fxEntry {
	if e, ok := s.current.Load().(fxEntry); ok && s.now().Sub(e.fetchedAt) < s.ttl {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 等锁期间可能已有人拉完
	if e, ok := s.current.Load().(fxEntry); ok && s.now().Sub(e.fetchedAt) < s.ttl {
		return e
	}

	if s.source == nil {
		return fxEntry{rate: fallbackUsdTwd, fetchedAt: s.now(), source: "fallback"}
	}

	rate, err := s.source.UsdTwd(ctx)
	if err != nil {
		logger.Warn(ctx, "拉取美元台币汇率失败", "error", err)
		if e, ok := s.current.Load().(fxEntry); ok {
			e.source = "cache"
			return e
		}
		return fxEntry{rate: fallbackUsdTwd, fetchedAt: s.now(), source: "fallback"}
	}

	e := fxEntry{rate: rate, fetchedAt: s.now(), source: "upstream"}
	s.current.Store(e)
	return e
}
