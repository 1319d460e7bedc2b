package biz

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"entitlement-service/internal/constants"
	"entitlement-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// UsageRepo 使用次数数据层接口（定义在 biz 层）
type UsageRepo interface {
	// GetUsageCount 读取使用日计数，不存在时返回 0
	GetUsageCount(ctx context.Context, userID, usageDay string) (int, error)
	// DeleteUsageBefore 删除早于 usageDay 的计数，返回删除行数
	DeleteUsageBefore(ctx context.Context, usageDay string) (int64, error)
}

// UsageStatus 配额检查结果（仅供参考，不是预留）
type UsageStatus struct {
	Allowed       bool
	Plan          Plan
	Limit         int
	Used          int
	Remaining     int
	Credits       int
	ConsumeCredit bool
	UsageDay      string
	ResetsAt      time.Time
}

// UsageSummary 记录一次动作后的额度汇总
type UsageSummary struct {
	Plan           Plan
	Limit          int
	Used           int
	Remaining      int
	Credits        int
	ConsumedCredit bool
	ResetsAt       time.Time
}

// UsageQuotaUseCase 每日额度业务逻辑
type UsageQuotaUseCase struct {
	userRepo  UserRepo
	usageRepo UsageRepo
	tx        Transactor
	premium   *PremiumUseCase
	policy    *UsagePolicy
	calendar  *UsageCalendar
	conf      *EntitlementConfig
	clock     Clock
	log       *log.Helper
	metrics   *metrics.EntitlementMetrics
}

// NewUsageQuotaUseCase 创建额度 UseCase
func NewUsageQuotaUseCase(
	userRepo UserRepo,
	usageRepo UsageRepo,
	tx Transactor,
	premium *PremiumUseCase,
	policy *UsagePolicy,
	calendar *UsageCalendar,
	conf *EntitlementConfig,
	clock Clock,
	logger log.Logger,
) *UsageQuotaUseCase {
	return &UsageQuotaUseCase{
		userRepo:  userRepo,
		usageRepo: usageRepo,
		tx:        tx,
		premium:   premium,
		policy:    policy,
		calendar:  calendar,
		conf:      conf,
		clock:     clock,
		log:       log.NewHelper(logger),
		metrics:   metrics.GetMetrics(),
	}
}

// effectivePlan 计算生效套餐：显式覆盖 > 有效会员 > 用户表套餐
func (uc *UsageQuotaUseCase) effectivePlan(user *User, premium *PremiumStatus) Plan {
	if uc.conf.PlanOverride != "" {
		return uc.conf.PlanOverride
	}
	if premium != nil && premium.IsPremium {
		return PlanPremium
	}
	return user.Plan
}

// Evaluate 检查用户今日是否还能执行动作
func (uc *UsageQuotaUseCase) Evaluate(ctx context.Context, userID string) (*UsageStatus, error) {
	if userID == "" {
		return nil, NewError(KindInvalidArgument, "user_id is required")
	}
	now := uc.clock()
	premium, err := uc.premium.Resolve(ctx, userID, now)
	if err != nil {
		uc.observeEvaluate(constants.UsageResultError)
		return nil, err
	}
	return uc.evaluate(ctx, userID, premium, now)
}

func (uc *UsageQuotaUseCase) evaluate(ctx context.Context, userID string, premium *PremiumStatus, now time.Time) (*UsageStatus, error) {
	user, err := uc.userRepo.GetUser(ctx, userID)
	if err != nil {
		uc.observeEvaluate(constants.UsageResultError)
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, NewError(KindNotFound, "user %s not found", userID)
	}

	day := uc.calendar.Day(now)
	used, err := uc.usageRepo.GetUsageCount(ctx, userID, day)
	if err != nil {
		uc.observeEvaluate(constants.UsageResultError)
		return nil, fmt.Errorf("get usage count: %w", err)
	}

	plan := uc.effectivePlan(user, premium)
	limit := uc.policy.DailyLimit(plan)
	remaining := max(limit-used, 0)
	consumeCredit := remaining == 0 && user.CreditBalance > 0
	status := &UsageStatus{
		Allowed:       remaining > 0 || consumeCredit,
		Plan:          plan,
		Limit:         limit,
		Used:          used,
		Remaining:     remaining,
		Credits:       user.CreditBalance,
		ConsumeCredit: consumeCredit,
		UsageDay:      day,
		ResetsAt:      uc.calendar.NextReset(now),
	}

	switch {
	case !status.Allowed:
		uc.observeEvaluate(constants.UsageResultDenied)
	case status.ConsumeCredit:
		uc.observeEvaluate(constants.UsageResultCredit)
	default:
		uc.observeEvaluate(constants.UsageResultAllowed)
	}
	return status, nil
}

// Record 原子地记录一次动作
// usageDay 为空时取当前使用日；consumeCredit 来自之前的 Evaluate，可能已过期，积分余额在事务内重新校验
func (uc *UsageQuotaUseCase) Record(ctx context.Context, userID, usageDay string, consumeCredit bool) (*UsageSummary, error) {
	startTime := time.Now()
	if userID == "" {
		return nil, NewError(KindInvalidArgument, "user_id is required")
	}
	now := uc.clock()
	if usageDay == "" {
		usageDay = uc.calendar.Day(now)
	}
	resetsAt, err := uc.calendar.ResetsAt(usageDay)
	if err != nil {
		return nil, WrapError(KindInvalidArgument, err, "invalid usage_day")
	}

	premium, err := uc.premium.Resolve(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	var summary *UsageSummary
	err = uc.tx.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return NewError(KindNotFound, "user %s not found", userID)
		}

		used, err := tx.IncrementUsage(ctx, userID, usageDay, now)
		if err != nil {
			return err
		}

		consumed := false
		if consumeCredit {
			if consumed, err = tx.ConsumeCredit(ctx, userID); err != nil {
				return err
			}
		}

		// 重新读取扣减后的余额
		after, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if after == nil {
			return NewError(KindNotFound, "user %s not found", userID)
		}

		plan := uc.effectivePlan(user, premium)
		limit := uc.policy.DailyLimit(plan)
		summary = &UsageSummary{
			Plan:           plan,
			Limit:          limit,
			Used:           used,
			Remaining:      max(limit-used, 0),
			Credits:        after.CreditBalance,
			ConsumedCredit: consumed,
			ResetsAt:       resetsAt,
		}
		return nil
	})
	if err != nil {
		if _, ok := AsError(err); !ok {
			uc.log.WithContext(ctx).Errorf("Record usage failed: user_id=%s, day=%s, error=%v", userID, usageDay, err)
			err = fmt.Errorf("record usage: %w", err)
		}
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.UsageRecordDuration.Observe(time.Since(startTime).Seconds())
		uc.metrics.UsageRecordTotal.WithLabelValues(strconv.FormatBool(summary.ConsumedCredit)).Inc()
		if summary.ConsumedCredit {
			uc.metrics.CreditConsumedTotal.Inc()
		}
	}
	if consumeCredit && !summary.ConsumedCredit {
		uc.log.WithContext(ctx).Warnf("Credit no longer available at record time: user_id=%s, day=%s", userID, usageDay)
	}
	return summary, nil
}

// Consume 检查并记录一次动作，额度和积分都不足时返回 UsageLimitExceeded
func (uc *UsageQuotaUseCase) Consume(ctx context.Context, userID string) (*UsageSummary, error) {
	status, err := uc.Evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !status.Allowed {
		return nil, &Error{
			Kind:    KindUsageLimitExceeded,
			Message: "daily usage limit reached",
			Limit: &UsageLimitDetail{
				Limit:     status.Limit,
				Used:      status.Used,
				Remaining: status.Remaining,
				Credits:   status.Credits,
				ResetsAt:  status.ResetsAt,
			},
		}
	}
	return uc.Record(ctx, userID, status.UsageDay, status.ConsumeCredit)
}

func (uc *UsageQuotaUseCase) observeEvaluate(result string) {
	if uc.metrics != nil {
		uc.metrics.UsageEvaluateTotal.WithLabelValues(result).Inc()
	}
}
