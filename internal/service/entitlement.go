package service

import (
	"context"

	"entitlement-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// EntitlementService 面向客户端的权益服务
type EntitlementService struct {
	purchase    *biz.PurchaseUseCase
	usage       *biz.UsageQuotaUseCase
	premium     *biz.PremiumUseCase
	entitlement *biz.EntitlementUseCase
	log         *log.Helper
}

// NewEntitlementService 创建 EntitlementService
func NewEntitlementService(
	purchase *biz.PurchaseUseCase,
	usage *biz.UsageQuotaUseCase,
	premium *biz.PremiumUseCase,
	entitlement *biz.EntitlementUseCase,
	logger log.Logger,
) *EntitlementService {
	return &EntitlementService{
		purchase:    purchase,
		usage:       usage,
		premium:     premium,
		entitlement: entitlement,
		log:         log.NewHelper(logger),
	}
}

// ProcessPurchase 校验收据并发放权益
func (s *EntitlementService) ProcessPurchase(ctx context.Context, req *PurchaseRequest) (*PurchaseReply, error) {
	result, err := s.purchase.ProcessPurchase(ctx, &biz.ProcessPurchaseParams{
		UID:           req.UserID,
		Platform:      req.Platform,
		ProductID:     req.ProductID,
		TransactionID: req.TransactionID,
		ReceiptData:   req.ReceiptData,
		Environment:   req.Environment,
		Quantity:      req.Quantity,
	})
	if err != nil {
		return nil, toAPIError(ctx, s.log, "ProcessPurchase", err)
	}
	return &PurchaseReply{
		CreditsGranted: result.CreditsGranted,
		Usage:          toUsageSummary(result.Usage),
		PremiumStatus:  toPremiumStatus(result.Premium),
	}, nil
}

// ConsumeUsage 检查并记录一次动作
func (s *EntitlementService) ConsumeUsage(ctx context.Context, req *UserRequest) (*UsageSummary, error) {
	summary, err := s.usage.Consume(ctx, req.UserID)
	if err != nil {
		return nil, toAPIError(ctx, s.log, "ConsumeUsage", err)
	}
	return toUsageSummary(summary), nil
}

// EvaluateUsage 检查今日是否还能执行动作（不记录）
func (s *EntitlementService) EvaluateUsage(ctx context.Context, req *UserRequest) (*UsageStatus, error) {
	status, err := s.usage.Evaluate(ctx, req.UserID)
	if err != nil {
		return nil, toAPIError(ctx, s.log, "EvaluateUsage", err)
	}
	return toUsageStatus(status), nil
}

// RecordUsage 记录一次动作
func (s *EntitlementService) RecordUsage(ctx context.Context, req *RecordUsageRequest) (*UsageSummary, error) {
	summary, err := s.usage.Record(ctx, req.UserID, req.UsageDay, req.ConsumeCredit)
	if err != nil {
		return nil, toAPIError(ctx, s.log, "RecordUsage", err)
	}
	return toUsageSummary(summary), nil
}

// GetEntitlement 获取权益汇总
func (s *EntitlementService) GetEntitlement(ctx context.Context, req *UserRequest) (*Entitlement, error) {
	ent, err := s.entitlement.GetEntitlement(ctx, req.UserID)
	if err != nil {
		return nil, toAPIError(ctx, s.log, "GetEntitlement", err)
	}
	return toEntitlement(ent), nil
}

// GetPremiumStatus 获取会员状态
func (s *EntitlementService) GetPremiumStatus(ctx context.Context, req *UserRequest) (*PremiumStatus, error) {
	status, err := s.entitlement.GetPremiumStatus(ctx, req.UserID)
	if err != nil {
		return nil, toAPIError(ctx, s.log, "GetPremiumStatus", err)
	}
	return toPremiumStatus(status), nil
}

// GrantPremium 发放活动/邀请会员天数
func (s *EntitlementService) GrantPremium(ctx context.Context, req *GrantPremiumRequest) (*PremiumStatus, error) {
	source, err := biz.ParseGrantSource(req.Source)
	if err != nil {
		return nil, toAPIError(ctx, s.log, "GrantPremium", biz.WrapError(biz.KindInvalidArgument, err, "invalid source %s", req.Source))
	}
	status, err := s.premium.GrantPremium(ctx, req.UserID, source, req.Days)
	if err != nil {
		return nil, toAPIError(ctx, s.log, "GrantPremium", err)
	}
	return toPremiumStatus(status), nil
}
