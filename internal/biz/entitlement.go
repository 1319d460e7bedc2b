package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
)

// Entitlement 面向客户端的权益视图：今日额度 + 积分 + 会员状态
type Entitlement struct {
	UID           string
	Allowed       bool
	ConsumeCredit bool
	Usage         *UsageSummary
	Premium       *PremiumStatus
}

// BuildUsageSummary 将配额检查结果投影为额度汇总
func BuildUsageSummary(status *UsageStatus, consumedCredit bool) *UsageSummary {
	return &UsageSummary{
		Plan:           status.Plan,
		Limit:          status.Limit,
		Used:           status.Used,
		Remaining:      status.Remaining,
		Credits:        status.Credits,
		ConsumedCredit: consumedCredit,
		ResetsAt:       status.ResetsAt,
	}
}

// BuildEntitlement 组合额度与会员状态，无副作用
func BuildEntitlement(userID string, status *UsageStatus, premium *PremiumStatus) *Entitlement {
	return &Entitlement{
		UID:           userID,
		Allowed:       status.Allowed,
		ConsumeCredit: status.ConsumeCredit,
		Usage:         BuildUsageSummary(status, false),
		Premium:       premium,
	}
}

// EntitlementUseCase 权益汇总
type EntitlementUseCase struct {
	usage   *UsageQuotaUseCase
	premium *PremiumUseCase
	clock   Clock
	log     *log.Helper
}

// NewEntitlementUseCase 创建权益汇总 UseCase
func NewEntitlementUseCase(usage *UsageQuotaUseCase, premium *PremiumUseCase, clock Clock, logger log.Logger) *EntitlementUseCase {
	return &EntitlementUseCase{
		usage:   usage,
		premium: premium,
		clock:   clock,
		log:     log.NewHelper(logger),
	}
}

// GetEntitlement 获取用户当前权益
func (uc *EntitlementUseCase) GetEntitlement(ctx context.Context, userID string) (*Entitlement, error) {
	if userID == "" {
		return nil, NewError(KindInvalidArgument, "user_id is required")
	}
	now := uc.clock()
	premium, err := uc.premium.Resolve(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	status, err := uc.usage.evaluate(ctx, userID, premium, now)
	if err != nil {
		return nil, err
	}
	return BuildEntitlement(userID, status, premium), nil
}

// GetPremiumStatus 获取用户当前会员状态
func (uc *EntitlementUseCase) GetPremiumStatus(ctx context.Context, userID string) (*PremiumStatus, error) {
	if userID == "" {
		return nil, NewError(KindInvalidArgument, "user_id is required")
	}
	return uc.premium.Resolve(ctx, userID, uc.clock())
}
