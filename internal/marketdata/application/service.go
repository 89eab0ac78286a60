// Package application 行情聚合服务的应用层。读路径状态机、批量查询、
// 缓存失效、外部推送写入与汇率查询都在这里编排。
package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/pkg/logger"
	"github.com/fynnwu/marketdata/pkg/metrics"
)

const (
	// defaultFetchTimeout 类别未配置拉取超时时的兜底值
	defaultFetchTimeout = 5 * time.Second
	// retryBackoff 同一次刷新内瞬时失败重试前的间隔
	retryBackoff = 300 * time.Millisecond
	// sideEffectTimeout 刷新旁路副作用的总预算
	sideEffectTimeout = 3 * time.Second
	// defaultListLimit 批量查询的默认并发上限
	defaultListLimit = 8
)

// Dependencies 门面服务的装配参数。History、Instruments、Mirror、Publisher、
// FX 与 Metrics 均可为 nil，缺席的部件对应的旁路行为直接跳过。
type Dependencies struct {
	Cache       domain.SnapshotCache
	Scheduler   *domain.Scheduler
	Providers   []domain.Provider
	History     domain.SnapshotHistoryRepository
	Instruments domain.InstrumentRepository
	Mirror      domain.SnapshotMirror
	Publisher   domain.PricePublisher
	FX          *FXService
	Metrics     *metrics.Metrics
	Watchlists  map[domain.AssetClass][]string
	ListLimit   int
	// Now 时钟注入点，nil 时使用系统时钟
	Now func() time.Time
}

// MarketDataService 行情聚合门面。读路径保证三件事：新鲜快照直出、
// 过期快照单飞刷新且落选者立即降级、冷启动有界等待。
type MarketDataService struct {
	cache       domain.SnapshotCache
	scheduler   *domain.Scheduler
	providers   map[domain.AssetClass]domain.Provider
	history     domain.SnapshotHistoryRepository
	instruments domain.InstrumentRepository
	mirror      domain.SnapshotMirror
	publisher   domain.PricePublisher
	fx          *FXService
	metrics     *metrics.Metrics
	watchlists  map[domain.AssetClass][]string
	listLimit   int
	now         func() time.Time
}

// NewMarketDataService 构造函数
func NewMarketDataService(deps Dependencies) *MarketDataService {
	providers := make(map[domain.AssetClass]domain.Provider, len(deps.Providers))
	for _, p := range deps.Providers {
		providers[p.Class()] = p
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	listLimit := deps.ListLimit
	if listLimit <= 0 {
		listLimit = defaultListLimit
	}

	return &MarketDataService{
		cache:       deps.Cache,
		scheduler:   deps.Scheduler,
		providers:   providers,
		history:     deps.History,
		instruments: deps.Instruments,
		mirror:      deps.Mirror,
		publisher:   deps.Publisher,
		fx:          deps.FX,
		metrics:     deps.Metrics,
		watchlists:  deps.Watchlists,
		listLimit:   listLimit,
		now:         now,
	}
}

// GetSnapshot 返回单档资产的最新快照，必要时触发刷新
func (s *MarketDataService) GetSnapshot(ctx context.Context, class domain.AssetClass, rawSymbol string) (*SnapshotDTO, error) {
	id, err := domain.NormalizeSymbol(class, rawSymbol)
	if err != nil {
		return nil, err
	}
	snap, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSnapshotDTO(snap), nil
}

// resolve 单档读路径状态机
func (s *MarketDataService) resolve(ctx context.Context, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
	snap, ok := s.cache.Get(id)
	if !ok && s.mirror != nil {
		snap = s.seedFromMirror(ctx, id)
	}

	if !s.scheduler.IsStale(snap, s.now()) {
		s.countCacheHit(id)
		return snap, nil
	}

	if snap != nil {
		// 过期路径：认领刷新或降级供给旧值，绝不等待他人
		s.countCacheHit(id)
		claimed, _ := s.cache.TryBeginRefresh(id)
		if !claimed {
			s.countStaleServed(id)
			return snap.MarkStale(), nil
		}
		refreshed, err := s.refresh(ctx, id)
		if err != nil {
			s.countStaleServed(id)
			return snap.MarkStale(), nil
		}
		return refreshed, nil
	}

	// 冷启动路径：无旧值可降级
	s.countCacheMiss(id)
	claimed, done := s.cache.TryBeginRefresh(id)
	if claimed {
		refreshed, err := s.refresh(ctx, id)
		if err != nil {
			return nil, domain.NewError(domain.KindNoDataAvailable, id, err)
		}
		return refreshed, nil
	}
	return s.awaitRefresh(ctx, id, done)
}

// refresh 持有刷新权时执行实际拉取。超时预算独立于调用方取消，
// 认领成功后的结果对所有等待者都有价值。
func (s *MarketDataService) refresh(ctx context.Context, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
	defer s.cache.EndRefresh(id)

	provider, ok := s.providers[id.Class]
	if !ok {
		s.countRefresh(id, "failure")
		return nil, domain.NewError(domain.KindUpstreamUnavailable, id,
			fmt.Errorf("资产类别 %s 未配置上游适配器", id.Class))
	}

	timeout := defaultFetchTimeout
	if policy, ok := s.scheduler.PolicyFor(id.Class); ok && policy.FetchTimeout > 0 {
		timeout = policy.FetchTimeout
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	started := time.Now()
	snap, err := s.fetchWithRetry(fctx, provider, id)
	if s.metrics != nil {
		s.metrics.RefreshDuration.WithLabelValues(string(id.Class)).Observe(time.Since(started).Seconds())
	}
	if err != nil {
		s.countRefresh(id, "failure")
		logger.Warn(ctx, "快照刷新失败", "id", id.String(), "error", err)
		return nil, err
	}

	stored := s.cache.Put(id, snap)
	s.countRefresh(id, "success")
	s.updateCachedGauge()
	logger.Debug(ctx, "快照已刷新",
		"id", id.String(),
		"version", stored.Version,
		"price", stored.LastPrice.String(),
	)

	// 旁路副作用不阻塞读路径，也不阻塞等待者
	go s.afterRefresh(context.WithoutCancel(ctx), stored)

	return stored, nil
}

// fetchWithRetry 瞬时失败在同一次刷新预算内重试一次
func (s *MarketDataService) fetchWithRetry(ctx context.Context, provider domain.Provider, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
	snap, err := provider.Fetch(ctx, id)
	if err == nil || !domain.IsTransient(err) {
		return snap, err
	}

	select {
	case <-ctx.Done():
		return nil, err
	case <-time.After(retryBackoff):
	}
	return provider.Fetch(ctx, id)
}

// awaitRefresh 冷启动落选者的有界等待。醒来后重读缓存，
// 有值即用，仍无值则按无数据报错。
func (s *MarketDataService) awaitRefresh(ctx context.Context, id domain.AssetIdentifier, done <-chan struct{}) (*domain.AssetSnapshot, error) {
	wait := defaultFetchTimeout
	if policy, ok := s.scheduler.PolicyFor(id.Class); ok && policy.FetchTimeout > 0 {
		wait = policy.FetchTimeout
	}

	started := time.Now()
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}
	if s.metrics != nil {
		s.metrics.RefreshWaitDuration.Observe(time.Since(started).Seconds())
	}

	snap, ok := s.cache.Get(id)
	if !ok {
		return nil, domain.NewError(domain.KindNoDataAvailable, id, ctx.Err())
	}
	if s.scheduler.IsStale(snap, s.now()) {
		return snap.MarkStale(), nil
	}
	return snap, nil
}

// afterRefresh 刷新成功后的旁路副作用：镜像、历史、商品目录与事件发布。
// 每一项都尽力而为，失败只记日志。
func (s *MarketDataService) afterRefresh(ctx context.Context, snap *domain.AssetSnapshot) {
	ctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()

	if s.mirror != nil {
		if err := s.mirror.Store(ctx, snap); err != nil {
			logger.Warn(ctx, "写入快照镜像失败", "id", snap.ID.String(), "error", err)
		}
	}

	if s.history != nil {
		var rate decimal.Decimal
		if s.fx != nil {
			rate, _ = s.fx.Rate(ctx)
		}
		if err := s.history.Save(ctx, domain.NewSnapshotRecord(snap, rate)); err != nil {
			logger.Warn(ctx, "写入快照历史失败", "id", snap.ID.String(), "error", err)
		}
	}

	if s.instruments != nil {
		if err := s.instruments.Upsert(ctx, domain.NewInstrumentFromSnapshot(snap, s.now())); err != nil {
			logger.Warn(ctx, "登记商品目录失败", "id", snap.ID.String(), "error", err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishPriceUpdated(ctx, snap); err != nil {
			logger.Warn(ctx, "发布价格更新事件失败", "id", snap.ID.String(), "error", err)
		} else if s.metrics != nil {
			s.metrics.EventsPublishedTotal.Inc()
		}
	}
}

// ListSnapshots 批量解析一个资产类别下的多档快照。symbols 为空时
// 取该类别的盯盘清单与当前已缓存标识的并集。单档失败按符号记录，
// 不影响其余符号。
func (s *MarketDataService) ListSnapshots(ctx context.Context, class domain.AssetClass, symbols []string) (*SnapshotListDTO, error) {
	ids, errs := s.resolveTargets(class, symbols)

	results := make([]*domain.AssetSnapshot, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.listLimit)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			snap, err := s.resolve(gctx, id)
			if err != nil {
				mu.Lock()
				errs[id.Symbol] = string(domain.KindOf(err))
				mu.Unlock()
				return nil
			}
			results[i] = snap
			return nil
		})
	}
	_ = g.Wait()

	dto := &SnapshotListDTO{
		AssetClass: string(class),
		Snapshots:  make([]*SnapshotDTO, 0, len(ids)),
	}
	for _, snap := range results {
		if snap == nil {
			continue
		}
		if snap.Stale {
			dto.Stale = true
		}
		dto.Snapshots = append(dto.Snapshots, toSnapshotDTO(snap))
	}
	dto.Count = len(dto.Snapshots)
	if len(errs) > 0 {
		dto.Errors = errs
	}
	return dto, nil
}

// resolveTargets 展开批量查询的目标标识，非法符号计入错误映射
func (s *MarketDataService) resolveTargets(class domain.AssetClass, symbols []string) ([]domain.AssetIdentifier, map[string]string) {
	errs := make(map[string]string)
	seen := make(map[domain.AssetIdentifier]bool)
	var ids []domain.AssetIdentifier

	add := func(raw string) {
		id, err := domain.NormalizeSymbol(class, raw)
		if err != nil {
			errs[raw] = string(domain.KindOf(err))
			return
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if len(symbols) > 0 {
		for _, raw := range symbols {
			add(raw)
		}
		return ids, errs
	}

	for _, raw := range s.watchlists[class] {
		add(raw)
	}
	for _, id := range s.cache.Keys() {
		if id.Class == class && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, errs
}

// Invalidate 管理性失效：清空缓存条目并删除镜像，版本计数器保留
func (s *MarketDataService) Invalidate(ctx context.Context, class domain.AssetClass, rawSymbol string) error {
	id, err := domain.NormalizeSymbol(class, rawSymbol)
	if err != nil {
		return err
	}

	s.cache.Remove(id)
	s.updateCachedGauge()
	logger.Info(ctx, "快照已失效", "id", id.String())

	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, id); err != nil {
			logger.Warn(ctx, "删除快照镜像失败", "id", id.String(), "error", err)
		}
	}
	return nil
}

// ApplyPushedQuote 写入外部推送的报价。走与刷新相同的 Put 通道，
// 版本号保持单调，但不回发价格事件以免回声。
func (s *MarketDataService) ApplyPushedQuote(ctx context.Context, cmd ApplyPushedQuoteCommand) error {
	class, err := domain.ParseAssetClass(cmd.AssetClass)
	if err != nil {
		return err
	}
	id, err := domain.NormalizeSymbol(class, cmd.Symbol)
	if err != nil {
		return err
	}
	if !cmd.Price.IsPositive() {
		return domain.NewError(domain.KindMalformedResponse, id,
			fmt.Errorf("推送价格必须为正，实得 %s", cmd.Price))
	}

	asOf := cmd.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}
	currency := cmd.Currency
	if currency == "" {
		currency = defaultCurrency(class)
	}

	stored := s.cache.Put(id, &domain.AssetSnapshot{
		ID:        id,
		Name:      cmd.Name,
		LastPrice: cmd.Price,
		Currency:  currency,
		AsOf:      asOf,
		Source:    "push",
	})
	s.updateCachedGauge()
	logger.Debug(ctx, "推送报价已写入", "id", id.String(), "version", stored.Version)

	if s.mirror != nil {
		if err := s.mirror.Store(ctx, stored); err != nil {
			logger.Warn(ctx, "写入快照镜像失败", "id", id.String(), "error", err)
		}
	}
	return nil
}

// ListInstruments 列出指定类别下已登记的商品目录
func (s *MarketDataService) ListInstruments(ctx context.Context, class domain.AssetClass) ([]*InstrumentDTO, error) {
	if s.instruments == nil {
		return []*InstrumentDTO{}, nil
	}
	list, err := s.instruments.ListByClass(ctx, class)
	if err != nil {
		return nil, err
	}
	dtos := make([]*InstrumentDTO, 0, len(list))
	for _, ins := range list {
		dtos = append(dtos, toInstrumentDTO(ins))
	}
	return dtos, nil
}

// GetHistory 返回单档资产最近的刷新历史，按数据时间倒序
func (s *MarketDataService) GetHistory(ctx context.Context, class domain.AssetClass, rawSymbol string, limit int) ([]*HistoryEntryDTO, error) {
	id, err := domain.NormalizeSymbol(class, rawSymbol)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []*HistoryEntryDTO{}, nil
	}
	records, err := s.history.ListBySymbol(ctx, class, id.Symbol, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]*HistoryEntryDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toHistoryEntryDTO(rec))
	}
	return dtos, nil
}

// CalendarStatus 返回指定类别的交易日历与当前开闭市状态
func (s *MarketDataService) CalendarStatus(class domain.AssetClass) (*CalendarDTO, error) {
	cal, ok := s.scheduler.CalendarFor(class)
	if !ok {
		return nil, fmt.Errorf("资产类别 %s 未绑定交易日历", class)
	}

	sessions := make([]string, 0, len(cal.Sessions))
	for _, w := range cal.Sessions {
		sessions = append(sessions, w.String())
	}
	open := cal.IsOpen(s.now())
	status := "open"
	if !open {
		status = string(domain.KindMarketClosed)
	}
	return &CalendarDTO{
		AssetClass: string(class),
		Calendar:   cal.Name,
		Timezone:   cal.Location.String(),
		Open:       open,
		Status:     status,
		Sessions:   sessions,
	}, nil
}

func (s *MarketDataService) seedFromMirror(ctx context.Context, id domain.AssetIdentifier) *domain.AssetSnapshot {
	mirrored, err := s.mirror.Load(ctx, id)
	if err != nil {
		logger.Warn(ctx, "读取快照镜像失败", "id", id.String(), "error", err)
		return nil
	}
	if mirrored == nil {
		return nil
	}

	seeded := s.cache.Seed(id, mirrored)
	s.updateCachedGauge()
	logger.Info(ctx, "快照温启动",
		"id", id.String(),
		"version", seeded.Version,
		"as_of", seeded.AsOf,
	)
	return seeded
}

func defaultCurrency(class domain.AssetClass) string {
	if class == domain.AssetClassUsEquity {
		return "USD"
	}
	return "TWD"
}

func (s *MarketDataService) countCacheHit(id domain.AssetIdentifier) {
	if s.metrics != nil {
		s.metrics.CacheHitsTotal.WithLabelValues(string(id.Class)).Inc()
	}
}

func (s *MarketDataService) countCacheMiss(id domain.AssetIdentifier) {
	if s.metrics != nil {
		s.metrics.CacheMissesTotal.WithLabelValues(string(id.Class)).Inc()
	}
}

func (s *MarketDataService) countStaleServed(id domain.AssetIdentifier) {
	if s.metrics != nil {
		s.metrics.StaleServedTotal.WithLabelValues(string(id.Class)).Inc()
	}
}

func (s *MarketDataService) countRefresh(id domain.AssetIdentifier, outcome string) {
	if s.metrics != nil {
		s.metrics.RefreshTotal.WithLabelValues(string(id.Class), outcome).Inc()
	}
}

func (s *MarketDataService) updateCachedGauge() {
	if s.metrics != nil {
		s.metrics.SnapshotsCached.Set(float64(s.cache.Len()))
	}
}
