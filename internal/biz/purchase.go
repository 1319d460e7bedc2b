package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"entitlement-service/internal/constants"
	"entitlement-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// ProcessPurchaseParams 购买处理参数
type ProcessPurchaseParams struct {
	UID           string
	Platform      string
	ProductID     string
	TransactionID string
	ReceiptData   string
	Environment   string // 可为空
	Quantity      int    // 可为 0
}

// PurchaseResult 购买处理结果
type PurchaseResult struct {
	CreditsGranted int
	Usage          *UsageSummary
	Premium        *PremiumStatus
}

// grantPlan 根据校验结果和商品目录计算出的发放内容
type grantPlan struct {
	quantity    int
	credits     int
	premiumDays int
	startDate   time.Time
	endDate     time.Time
}

// PurchaseUseCase 购买账本：每个 transaction_id 只生效一次
type PurchaseUseCase struct {
	receiptRepo ReceiptRepo
	userRepo    UserRepo
	tx          Transactor
	verifier    ReceiptVerifier
	locker      Locker // 可为 nil
	publisher   EventPublisher
	entitlement *EntitlementUseCase
	conf        *EntitlementConfig
	idGen       IDGenerator
	clock       Clock
	log         *log.Helper
	metrics     *metrics.EntitlementMetrics
}

// NewPurchaseUseCase 创建购买 UseCase
func NewPurchaseUseCase(
	receiptRepo ReceiptRepo,
	userRepo UserRepo,
	tx Transactor,
	verifier ReceiptVerifier,
	locker Locker,
	publisher EventPublisher,
	entitlement *EntitlementUseCase,
	conf *EntitlementConfig,
	idGen IDGenerator,
	clock Clock,
	logger log.Logger,
) *PurchaseUseCase {
	return &PurchaseUseCase{
		receiptRepo: receiptRepo,
		userRepo:    userRepo,
		tx:          tx,
		verifier:    verifier,
		locker:      locker,
		publisher:   publisher,
		entitlement: entitlement,
		conf:        conf,
		idGen:       idGen,
		clock:       clock,
		log:         log.NewHelper(logger),
		metrics:     metrics.GetMetrics(),
	}
}

// ProcessPurchase 校验收据并发放积分/会员天数（幂等）
func (uc *PurchaseUseCase) ProcessPurchase(ctx context.Context, p *ProcessPurchaseParams) (*PurchaseResult, error) {
	if p == nil {
		return nil, NewError(KindInvalidArgument, "purchase request is required")
	}
	startTime := time.Now()
	result, outcome, err := uc.processPurchase(ctx, p)
	if uc.metrics != nil {
		uc.metrics.PurchaseDuration.Observe(time.Since(startTime).Seconds())
		uc.metrics.PurchaseTotal.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		if _, ok := AsError(err); !ok {
			uc.log.WithContext(ctx).Errorf("ProcessPurchase failed: user_id=%s, transaction_id=%s, error=%v", p.UID, p.TransactionID, err)
		} else {
			uc.log.WithContext(ctx).Warnf("ProcessPurchase rejected: user_id=%s, transaction_id=%s, error=%v", p.UID, p.TransactionID, err)
		}
		return nil, err
	}
	return result, nil
}

func (uc *PurchaseUseCase) processPurchase(ctx context.Context, p *ProcessPurchaseParams) (*PurchaseResult, string, error) {
	if err := validatePurchaseParams(p); err != nil {
		return nil, constants.PurchaseResultRejected, err
	}
	platform, err := ParsePlatform(p.Platform)
	if err != nil {
		return nil, constants.PurchaseResultRejected, WrapError(KindUnsupportedPlatform, err, "unsupported platform %s", p.Platform)
	}

	// 同一交易号串行处理，避免重复调用外部校验；正确性由 transaction_id 唯一约束保证
	if uc.locker != nil {
		unlock, err := uc.locker.Lock(ctx, constants.RedisKeyPurchaseLock+p.TransactionID, uc.conf.PurchaseLockExpiry)
		if err != nil {
			uc.log.WithContext(ctx).Warnf("Purchase lock unavailable, continuing without it: transaction_id=%s, error=%v", p.TransactionID, err)
		} else {
			defer unlock()
		}
	}

	// 1. 幂等性检查
	existing, err := uc.receiptRepo.GetReceiptByTransactionID(ctx, p.TransactionID)
	if err != nil {
		return nil, constants.PurchaseResultError, fmt.Errorf("get receipt: %w", err)
	}
	if existing != nil {
		return uc.replay(ctx, existing, p.UID)
	}

	user, err := uc.userRepo.GetUser(ctx, p.UID)
	if err != nil {
		return nil, constants.PurchaseResultError, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, constants.PurchaseResultRejected, NewError(KindNotFound, "user %s not found", p.UID)
	}

	// 2. 校验收据
	verified, err := uc.verifier.Verify(ctx, &VerifyInput{
		Platform:      platform,
		ProductID:     p.ProductID,
		TransactionID: p.TransactionID,
		ReceiptData:   p.ReceiptData,
		Environment:   p.Environment,
		Quantity:      p.Quantity,
	})
	if err != nil {
		if _, ok := AsError(err); ok {
			return nil, constants.PurchaseResultRejected, err
		}
		return nil, constants.PurchaseResultError, WrapError(KindVerificationFailed, err, "receipt verification failed")
	}

	// 校验结果中的商品必须与请求一致
	if verified.ProductID != p.ProductID {
		return nil, constants.PurchaseResultRejected, NewError(KindInvalidReceipt, "receipt product %s does not match request", verified.ProductID)
	}

	// 3. 商品目录
	product, ok := uc.conf.Products[verified.ProductID]
	if !ok {
		return nil, constants.PurchaseResultRejected, NewError(KindUnsupportedProduct, "unsupported product %s", verified.ProductID)
	}

	// 4. 计算发放内容
	plan := planGrant(verified, product, p.Quantity)
	if plan.credits == 0 && plan.premiumDays == 0 {
		return nil, constants.PurchaseResultRejected, NewError(KindNothingToGrant, "product %s grants nothing", product.ProductID)
	}

	now := uc.clock()
	receipt := &Receipt{
		ID:                    uc.idGen(),
		TransactionID:         p.TransactionID,
		UID:                   p.UID,
		Platform:              platform,
		ProductID:             verified.ProductID,
		OriginalTransactionID: verified.OriginalTransactionID,
		Environment:           verified.Environment,
		Quantity:              plan.quantity,
		CreditsGranted:        plan.credits,
		PremiumDays:           plan.premiumDays,
		PurchasedAt:           verified.PurchaseDate,
		ExpiresAt:             verified.ExpiresDate,
		RawPayload:            verified.Raw,
		Status:                constants.ReceiptStatusVerified,
		CreatedAt:             now,
	}

	// 5. 单事务：收据 + 积分 + 会员授权
	err = uc.tx.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		u, err := tx.GetUser(ctx, p.UID)
		if err != nil {
			return err
		}
		if u == nil {
			return NewError(KindNotFound, "user %s not found", p.UID)
		}
		if err := tx.CreateReceipt(ctx, receipt); err != nil {
			return err
		}
		if plan.credits > 0 {
			if err := tx.AddCredits(ctx, p.UID, plan.credits); err != nil {
				return err
			}
		}
		if plan.premiumDays > 0 {
			if err := tx.CreatePremiumGrant(ctx, &PremiumGrant{
				ID:        uc.idGen(),
				UID:       p.UID,
				Source:    GrantSourcePurchase,
				Days:      plan.premiumDays,
				StartDate: plan.startDate,
				EndDate:   plan.endDate,
				ReceiptID: receipt.ID,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrDuplicateTransaction) {
		// 并发重复提交：另一个请求已先写入
		existing, getErr := uc.receiptRepo.GetReceiptByTransactionID(ctx, p.TransactionID)
		if getErr != nil {
			return nil, constants.PurchaseResultError, fmt.Errorf("get receipt after duplicate: %w", getErr)
		}
		if existing == nil {
			return nil, constants.PurchaseResultError, fmt.Errorf("receipt %s reported duplicate but not found", p.TransactionID)
		}
		return uc.replay(ctx, existing, p.UID)
	}
	if err != nil {
		if _, ok := AsError(err); ok {
			return nil, constants.PurchaseResultRejected, err
		}
		return nil, constants.PurchaseResultError, fmt.Errorf("apply purchase: %w", err)
	}

	if uc.metrics != nil {
		uc.metrics.CreditsGranted.Add(float64(plan.credits))
		if plan.premiumDays > 0 {
			uc.metrics.PremiumDays.WithLabelValues(string(GrantSourcePurchase)).Add(float64(plan.premiumDays))
		}
	}
	uc.log.WithContext(ctx).Infof("Purchase applied: user_id=%s, transaction_id=%s, product_id=%s, credits=%d, premium_days=%d",
		p.UID, p.TransactionID, verified.ProductID, plan.credits, plan.premiumDays)
	uc.publish(ctx, receipt, now)

	// 6. 提交后重新计算状态
	result, err := uc.snapshot(ctx, p.UID, plan.credits)
	if err != nil {
		return nil, constants.PurchaseResultError, err
	}
	return result, constants.PurchaseResultGranted, nil
}

// replay 已处理过的交易号：同一用户直接返回当前状态，其他用户视为冲突
func (uc *PurchaseUseCase) replay(ctx context.Context, existing *Receipt, userID string) (*PurchaseResult, string, error) {
	if existing.UID != userID {
		return nil, constants.PurchaseResultConflict, NewError(KindConflict, "transaction %s belongs to another user", existing.TransactionID)
	}
	uc.log.WithContext(ctx).Infof("Purchase already processed: user_id=%s, transaction_id=%s", userID, existing.TransactionID)
	result, err := uc.snapshot(ctx, userID, 0)
	if err != nil {
		return nil, constants.PurchaseResultError, err
	}
	return result, constants.PurchaseResultReplayed, nil
}

func (uc *PurchaseUseCase) snapshot(ctx context.Context, userID string, creditsGranted int) (*PurchaseResult, error) {
	ent, err := uc.entitlement.GetEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PurchaseResult{
		CreditsGranted: creditsGranted,
		Usage:          ent.Usage,
		Premium:        ent.Premium,
	}, nil
}

// publish 发送购买生效事件，失败只记录日志
func (uc *PurchaseUseCase) publish(ctx context.Context, receipt *Receipt, appliedAt time.Time) {
	if uc.publisher == nil {
		return
	}
	event := &PurchaseAppliedEvent{
		ReceiptID:      receipt.ID,
		TransactionID:  receipt.TransactionID,
		UserID:         receipt.UID,
		Platform:       string(receipt.Platform),
		ProductID:      receipt.ProductID,
		CreditsGranted: receipt.CreditsGranted,
		PremiumDays:    receipt.PremiumDays,
		PurchasedAt:    receipt.PurchasedAt,
		AppliedAt:      appliedAt,
	}
	if err := uc.publisher.PublishPurchaseApplied(ctx, event); err != nil {
		uc.log.WithContext(ctx).Warnf("Publish purchase event failed: transaction_id=%s, error=%v", receipt.TransactionID, err)
	}
}

func validatePurchaseParams(p *ProcessPurchaseParams) error {
	switch {
	case p.UID == "":
		return NewError(KindInvalidArgument, "user_id is required")
	case p.TransactionID == "":
		return NewError(KindInvalidArgument, "transaction_id is required")
	case p.ProductID == "":
		return NewError(KindInvalidArgument, "product_id is required")
	case p.ReceiptData == "":
		return NewError(KindInvalidArgument, "receipt_data is required")
	case p.Quantity < 0:
		return NewError(KindInvalidArgument, "quantity must not be negative")
	}
	return nil
}

// planGrant 计算发放数量
// 会员商品的收据带有晚于购买时间的过期时间时按实际订阅时长（向上取整天数），否则按商品天数 * 数量
func planGrant(v *VerificationResult, product Product, requestedQuantity int) grantPlan {
	quantity := v.Quantity
	if quantity <= 0 {
		quantity = requestedQuantity
	}
	if quantity <= 0 {
		quantity = 1
	}

	plan := grantPlan{
		quantity:  quantity,
		credits:   product.CreditsPerUnit * quantity,
		startDate: v.PurchaseDate,
	}
	if product.PremiumDaysPerUnit == 0 {
		return plan
	}
	if v.ExpiresDate != nil && v.ExpiresDate.After(v.PurchaseDate) {
		plan.premiumDays = ceilDays(v.ExpiresDate.Sub(v.PurchaseDate))
		plan.endDate = *v.ExpiresDate
		return plan
	}
	plan.premiumDays = product.PremiumDaysPerUnit * quantity
	plan.endDate = v.PurchaseDate.Add(time.Duration(plan.premiumDays) * 24 * time.Hour)
	return plan
}
