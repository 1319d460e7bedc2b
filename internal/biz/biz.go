package biz

import (
	"github.com/google/uuid"
	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewEntitlementConfig,
	NewUsagePolicy,
	NewUsageCalendar,
	NewClock,
	NewIDGenerator,
	NewPremiumUseCase,
	NewUsageQuotaUseCase,
	NewEntitlementUseCase,
	NewPurchaseUseCase,
	NewUsageRetentionUseCase,
)

// IDGenerator 生成记录主键
type IDGenerator func() string

// NewIDGenerator 返回 UUID 生成器
func NewIDGenerator() IDGenerator {
	return uuid.NewString
}
