package biz

import (
	"context"
	"fmt"
	"math"
	"time"

	"entitlement-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// GrantSource 会员授权来源
type GrantSource string

const (
	GrantSourcePurchase    GrantSource = "PURCHASE"
	GrantSourcePromotional GrantSource = "PROMOTIONAL"
	GrantSourceReferral    GrantSource = "REFERRAL"
)

// ParseGrantSource 解析授权来源
func ParseGrantSource(s string) (GrantSource, error) {
	switch GrantSource(s) {
	case GrantSourcePurchase, GrantSourcePromotional, GrantSourceReferral:
		return GrantSource(s), nil
	default:
		return "", fmt.Errorf("unknown grant source %q", s)
	}
}

// PremiumGrant 会员授权记录，只追加不修改
type PremiumGrant struct {
	ID        string
	UID       string
	Source    GrantSource
	Days      int
	StartDate time.Time
	EndDate   time.Time
	ReceiptID string // 非购买来源为空
	CreatedAt time.Time
}

// PremiumStatus 由授权记录推导的会员状态（不持久化）
type PremiumStatus struct {
	IsPremium     bool
	Source        GrantSource
	DaysRemaining int
	ExpiresAt     *time.Time
	Grants        []*PremiumGrant
}

// PremiumGrantRepo 会员授权数据层接口（定义在 biz 层）
type PremiumGrantRepo interface {
	ListPremiumGrants(ctx context.Context, userID string) ([]*PremiumGrant, error)
}

// ResolvePremium 根据授权集合计算 now 时刻的会员状态
// 过期时间取有效授权中最大的 endDate，同一 endDate 取最近创建的授权来源
func ResolvePremium(grants []*PremiumGrant, now time.Time) *PremiumStatus {
	status := &PremiumStatus{Grants: grants}
	var chosen *PremiumGrant
	for _, g := range grants {
		if !g.EndDate.After(now) {
			continue
		}
		if chosen == nil ||
			g.EndDate.After(chosen.EndDate) ||
			(g.EndDate.Equal(chosen.EndDate) && g.CreatedAt.After(chosen.CreatedAt)) {
			chosen = g
		}
	}
	if chosen == nil {
		return status
	}
	expiresAt := chosen.EndDate
	status.IsPremium = true
	status.Source = chosen.Source
	status.ExpiresAt = &expiresAt
	status.DaysRemaining = ceilDays(expiresAt.Sub(now))
	return status
}

// ceilDays 向上取整天数
func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

// PremiumUseCase 会员状态业务逻辑
type PremiumUseCase struct {
	repo    PremiumGrantRepo
	tx      Transactor
	idGen   IDGenerator
	clock   Clock
	log     *log.Helper
	metrics *metrics.EntitlementMetrics
}

// NewPremiumUseCase 创建会员 UseCase
func NewPremiumUseCase(repo PremiumGrantRepo, tx Transactor, idGen IDGenerator, clock Clock, logger log.Logger) *PremiumUseCase {
	return &PremiumUseCase{
		repo:    repo,
		tx:      tx,
		idGen:   idGen,
		clock:   clock,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Resolve 计算用户在 now 时刻的会员状态
func (uc *PremiumUseCase) Resolve(ctx context.Context, userID string, now time.Time) (*PremiumStatus, error) {
	grants, err := uc.repo.ListPremiumGrants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list premium grants: %w", err)
	}
	return ResolvePremium(grants, now), nil
}

// GrantPremium 发放非购买来源的会员天数（活动、邀请等）
func (uc *PremiumUseCase) GrantPremium(ctx context.Context, userID string, source GrantSource, days int) (*PremiumStatus, error) {
	if userID == "" {
		return nil, NewError(KindInvalidArgument, "user_id is required")
	}
	if source == GrantSourcePurchase {
		return nil, NewError(KindInvalidArgument, "purchase grants are created by purchases only")
	}
	if days <= 0 {
		return nil, NewError(KindInvalidArgument, "days must be positive")
	}

	now := uc.clock()
	grant := &PremiumGrant{
		ID:        uc.idGen(),
		UID:       userID,
		Source:    source,
		Days:      days,
		StartDate: now,
		EndDate:   now.Add(time.Duration(days) * 24 * time.Hour),
		CreatedAt: now,
	}
	err := uc.tx.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return NewError(KindNotFound, "user %s not found", userID)
		}
		return tx.CreatePremiumGrant(ctx, grant)
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.PremiumDays.WithLabelValues(string(source)).Add(float64(days))
	}
	uc.log.WithContext(ctx).Infof("Premium granted: user_id=%s, source=%s, days=%d", userID, source, days)
	return uc.Resolve(ctx, userID, now)
}
