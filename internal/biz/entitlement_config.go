package biz

import (
	"fmt"
	"time"

	"entitlement-service/internal/conf"
	"entitlement-service/internal/constants"
)

// Product 商品目录条目
type Product struct {
	ProductID          string
	CreditsPerUnit     int
	PremiumDaysPerUnit int
}

// EntitlementConfig 权益配置
type EntitlementConfig struct {
	Env                string
	Location           *time.Location
	DailyLimits        map[string]int32
	PlanOverride       Plan // 为空表示不覆盖
	UsageRetentionDays int
	Products           map[string]Product
	PurchaseLockExpiry time.Duration
}

// 默认值
const (
	defaultTimezone           = "Asia/Seoul"
	defaultUsageRetentionDays = 90
	defaultPurchaseLockExpiry = 30 * time.Second
)

// NewEntitlementConfig 从配置创建 EntitlementConfig
func NewEntitlementConfig(c *conf.Bootstrap) (*EntitlementConfig, error) {
	config := &EntitlementConfig{
		Env:                c.Env,
		DailyLimits:        make(map[string]int32),
		UsageRetentionDays: defaultUsageRetentionDays,
		Products:           make(map[string]Product),
		PurchaseLockExpiry: defaultPurchaseLockExpiry,
	}

	timezone := defaultTimezone
	if e := c.Entitlement; e != nil {
		if e.Timezone != "" {
			timezone = e.Timezone
		}
		for k, v := range e.DailyLimits {
			config.DailyLimits[k] = v
		}
		if e.PlanOverride != "" {
			// 覆盖套餐仅用于非生产环境测试
			if c.Env == constants.EnvProduction {
				return nil, fmt.Errorf("plan_override is not allowed in %s", constants.EnvProduction)
			}
			plan, err := ParsePlan(e.PlanOverride)
			if err != nil {
				return nil, fmt.Errorf("invalid plan_override: %w", err)
			}
			config.PlanOverride = plan
		}
		if e.UsageRetentionDays > 0 {
			config.UsageRetentionDays = int(e.UsageRetentionDays)
		}
		for id, p := range e.Products {
			if p == nil {
				continue
			}
			if p.CreditsPerUnit < 0 || p.PremiumDaysPerUnit < 0 {
				return nil, fmt.Errorf("product %s: negative grant amount", id)
			}
			config.Products[id] = Product{
				ProductID:          id,
				CreditsPerUnit:     int(p.CreditsPerUnit),
				PremiumDaysPerUnit: int(p.PremiumDaysPerUnit),
			}
		}
		if e.PurchaseLockExpiry.AsDuration() > 0 {
			config.PurchaseLockExpiry = e.PurchaseLockExpiry.AsDuration()
		}
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	config.Location = loc
	return config, nil
}

// Clock 当前时间来源（测试时可替换）
type Clock func() time.Time

// NewClock 返回系统时钟
func NewClock() Clock {
	return time.Now
}
