package domain

import (
	"fmt"
	"time"
)

// SessionWindow 盘中交易时段，以当地时间的分钟数表示（0~1439）。
// Start > End 表示跨午夜时段，该时段归属于开始当日的交易日。
type SessionWindow struct {
	// Start 开始分钟（含）
	Start int `json:"start"`
	// End 结束分钟（不含）
	End int `json:"end"`
}

// String 返回 "HH:MM-HH:MM" 形式
func (w SessionWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Start/60, w.Start%60, w.End/60, w.End%60)
}

// TradingCalendar 交易日历，纯数据结构，不访问任何外部资源
type TradingCalendar struct {
	// Name 日历名称
	Name string
	// Location 市场所在时区
	Location *time.Location
	// TradingDays 交易的星期集合
	TradingDays map[time.Weekday]bool
	// Sessions 盘中交易时段
	Sessions []SessionWindow
	// Holidays 休市日期集合，当地日期 "2006-01-02"
	Holidays map[string]bool
}

// IsTradingDay 判断指定时刻的当地日期是否为交易日
func (c *TradingCalendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.Location)
	if !c.TradingDays[local.Weekday()] {
		return false
	}
	return !c.Holidays[local.Format("2006-01-02")]
}

// IsOpen 判断指定时刻市场是否开盘。跨午夜时段在两种情况下算开盘：
// 当日为交易日且时段已开始，或前一日为交易日且其跨夜时段尚未结束。
func (c *TradingCalendar) IsOpen(t time.Time) bool {
	local := t.In(c.Location)
	minute := local.Hour()*60 + local.Minute()

	for _, w := range c.Sessions {
		if w.Start <= w.End {
			if c.IsTradingDay(local) && minute >= w.Start && minute < w.End {
				return true
			}
			continue
		}
		if c.IsTradingDay(local) && minute >= w.Start {
			return true
		}
		if c.IsTradingDay(local.AddDate(0, 0, -1)) && minute < w.End {
			return true
		}
	}
	return false
}

// BuiltinCalendar 按名称返回内置交易日历。
// twse：台湾证交所 09:00-13:30；nyse：纽交所 09:30-16:00；
// taifex：台湾期交所日盘 08:45-13:45 加夜盘 15:00-次日 05:00。
func BuiltinCalendar(name string) (*TradingCalendar, error) {
	switch name {
	case "twse":
		loc, err := time.LoadLocation("Asia/Taipei")
		if err != nil {
			return nil, err
		}
		return &TradingCalendar{
			Name:        "twse",
			Location:    loc,
			TradingDays: weekdaysMonToFri(),
			Sessions:    []SessionWindow{{Start: 9 * 60, End: 13*60 + 30}},
			Holidays:    map[string]bool{},
		}, nil
	case "nyse":
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			return nil, err
		}
		return &TradingCalendar{
			Name:        "nyse",
			Location:    loc,
			TradingDays: weekdaysMonToFri(),
			Sessions:    []SessionWindow{{Start: 9*60 + 30, End: 16 * 60}},
			Holidays:    map[string]bool{},
		}, nil
	case "taifex":
		loc, err := time.LoadLocation("Asia/Taipei")
		if err != nil {
			return nil, err
		}
		return &TradingCalendar{
			Name:        "taifex",
			Location:    loc,
			TradingDays: weekdaysMonToFri(),
			Sessions: []SessionWindow{
				{Start: 8*60 + 45, End: 13*60 + 45},
				{Start: 15 * 60, End: 5 * 60},
			},
			Holidays: map[string]bool{},
		}, nil
	default:
		return nil, fmt.Errorf("unknown calendar %q", name)
	}
}

func weekdaysMonToFri() map[time.Weekday]bool {
	return map[time.Weekday]bool{
		time.Monday:    true,
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Thursday:  true,
		time.Friday:    true,
	}
}
