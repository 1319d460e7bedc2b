package biz

import (
	"fmt"
	"strings"
)

// defaultDailyLimits 每日动作次数上限
var defaultDailyLimits = map[Plan]int{
	PlanFree:     3,
	PlanStandard: 10,
	PlanPremium:  30,
}

// UsagePolicy 套餐每日额度表
type UsagePolicy struct {
	limits map[Plan]int
}

// NewUsagePolicy 创建额度表，配置中的未知套餐或负数视为配置错误（套餐名不区分大小写）
func NewUsagePolicy(c *EntitlementConfig) (*UsagePolicy, error) {
	limits := make(map[Plan]int, len(defaultDailyLimits))
	for plan, limit := range defaultDailyLimits {
		limits[plan] = limit
	}
	for name, limit := range c.DailyLimits {
		plan, err := ParsePlan(strings.ToUpper(name))
		if err != nil {
			return nil, fmt.Errorf("daily_limits: %w", err)
		}
		if limit < 0 {
			return nil, fmt.Errorf("daily_limits: negative limit for %s", plan)
		}
		limits[plan] = int(limit)
	}
	return &UsagePolicy{limits: limits}, nil
}

// DailyLimit 返回套餐的每日额度
func (p *UsagePolicy) DailyLimit(plan Plan) int {
	return p.limits[plan]
}
