package biz

import (
	"fmt"
	"time"

	"entitlement-service/internal/constants"
)

// UsageCalendar 按配置时区切分使用日（不是 UTC 零点）
type UsageCalendar struct {
	loc *time.Location
}

// NewUsageCalendar 创建使用日日历
func NewUsageCalendar(c *EntitlementConfig) *UsageCalendar {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return &UsageCalendar{loc: loc}
}

// Day 返回 t 所在的使用日 (YYYY-MM-DD)
func (c *UsageCalendar) Day(t time.Time) string {
	return t.In(c.loc).Format(constants.TimeFormatDay)
}

// StartOf 返回使用日的开始时间
func (c *UsageCalendar) StartOf(day string) (time.Time, error) {
	t, err := time.ParseInLocation(constants.TimeFormatDay, day, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid usage day %q: %w", day, err)
	}
	return t, nil
}

// ResetsAt 返回使用日之后下一个使用日的开始时间
func (c *UsageCalendar) ResetsAt(day string) (time.Time, error) {
	start, err := c.StartOf(day)
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, 0, 1), nil
}

// NextReset 返回 t 之后的下一个重置时间
func (c *UsageCalendar) NextReset(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, c.loc)
}
