package domain

import "time"

// RefreshPolicy 单一资产类别的刷新策略
type RefreshPolicy struct {
	// FreshnessWindow 快照新鲜度窗口
	FreshnessWindow time.Duration
	// FetchTimeout 单次上游拉取的超时
	FetchTimeout time.Duration
}

// Scheduler 按资产类别绑定刷新策略与交易日历，负责过期判定
type Scheduler struct {
	policies  map[AssetClass]RefreshPolicy
	calendars map[AssetClass]*TradingCalendar
}

// NewScheduler 创建空的调度器
func NewScheduler() *Scheduler {
	return &Scheduler{
		policies:  make(map[AssetClass]RefreshPolicy),
		calendars: make(map[AssetClass]*TradingCalendar),
	}
}

// Bind 绑定资产类别的策略与日历
func (s *Scheduler) Bind(class AssetClass, policy RefreshPolicy, calendar *TradingCalendar) {
	s.policies[class] = policy
	s.calendars[class] = calendar
}

// PolicyFor 返回资产类别的刷新策略
func (s *Scheduler) PolicyFor(class AssetClass) (RefreshPolicy, bool) {
	p, ok := s.policies[class]
	return p, ok
}

// CalendarFor 返回资产类别的交易日历
func (s *Scheduler) CalendarFor(class AssetClass) (*TradingCalendar, bool) {
	c, ok := s.calendars[class]
	return c, ok
}

// IsStale 判定快照是否过期。无快照恒为过期（冷启动闭市也要拉取）；
// 有快照时，仅当年龄超过新鲜度窗口且市场开盘才算过期，闭市期间旧值不过期。
func (s *Scheduler) IsStale(snapshot *AssetSnapshot, now time.Time) bool {
	if snapshot == nil {
		return true
	}

	policy, ok := s.policies[snapshot.ID.Class]
	if !ok {
		return true
	}
	if snapshot.Age(now) <= policy.FreshnessWindow {
		return false
	}

	// 未绑定日历时按开盘处理，宁可多刷新也不长期供给旧值
	calendar, ok := s.calendars[snapshot.ID.Class]
	if !ok {
		return true
	}
	return calendar.IsOpen(now)
}
