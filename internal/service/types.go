package service

import (
	"time"

	"entitlement-service/internal/biz"
)

// PurchaseRequest 购买请求
type PurchaseRequest struct {
	UserID        string `json:"user_id"`
	Platform      string `json:"platform"`
	ProductID     string `json:"product_id"`
	TransactionID string `json:"transaction_id"`
	ReceiptData   string `json:"receipt_data"`
	Environment   string `json:"environment,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
}

// PurchaseReply 购买结果
type PurchaseReply struct {
	CreditsGranted int            `json:"credits_granted"`
	Usage          *UsageSummary  `json:"usage"`
	PremiumStatus  *PremiumStatus `json:"premium_status"`
}

// UserRequest 只携带用户 ID 的请求
type UserRequest struct {
	UserID string `json:"user_id"`
}

// RecordUsageRequest 记录一次动作
type RecordUsageRequest struct {
	UserID        string `json:"user_id"`
	UsageDay      string `json:"usage_day,omitempty"` // 为空取当前使用日
	ConsumeCredit bool   `json:"consume_credit"`
}

// GrantPremiumRequest 发放活动/邀请会员天数
type GrantPremiumRequest struct {
	UserID string `json:"user_id"`
	Source string `json:"source"`
	Days   int    `json:"days"`
}

// UsageStatus 配额检查结果
type UsageStatus struct {
	Allowed       bool      `json:"allowed"`
	Plan          string    `json:"plan"`
	Limit         int       `json:"limit"`
	Used          int       `json:"used"`
	Remaining     int       `json:"remaining"`
	Credits       int       `json:"credits"`
	ConsumeCredit bool      `json:"consume_credit"`
	UsageDay      string    `json:"usage_day"`
	ResetsAt      time.Time `json:"resets_at"`
}

// UsageSummary 额度汇总
type UsageSummary struct {
	Plan           string    `json:"plan"`
	Limit          int       `json:"limit"`
	Used           int       `json:"used"`
	Remaining      int       `json:"remaining"`
	Credits        int       `json:"credits"`
	ConsumedCredit bool      `json:"consumed_credit"`
	ResetsAt       time.Time `json:"resets_at"`
}

// PremiumGrant 会员授权记录
type PremiumGrant struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Days      int       `json:"days"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	ReceiptID string    `json:"receipt_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PremiumStatus 会员状态
type PremiumStatus struct {
	IsPremium     bool            `json:"is_premium"`
	Source        *string         `json:"source"` // 非会员为 null
	DaysRemaining int             `json:"days_remaining"`
	ExpiresAt     *time.Time      `json:"expires_at"`
	Grants        []*PremiumGrant `json:"grants"`
}

// Entitlement 权益汇总
type Entitlement struct {
	UserID        string         `json:"user_id"`
	Allowed       bool           `json:"allowed"`
	ConsumeCredit bool           `json:"consume_credit"`
	Usage         *UsageSummary  `json:"usage"`
	Premium       *PremiumStatus `json:"premium"`
}

func toUsageStatus(s *biz.UsageStatus) *UsageStatus {
	return &UsageStatus{
		Allowed:       s.Allowed,
		Plan:          string(s.Plan),
		Limit:         s.Limit,
		Used:          s.Used,
		Remaining:     s.Remaining,
		Credits:       s.Credits,
		ConsumeCredit: s.ConsumeCredit,
		UsageDay:      s.UsageDay,
		ResetsAt:      s.ResetsAt,
	}
}

func toUsageSummary(s *biz.UsageSummary) *UsageSummary {
	if s == nil {
		return nil
	}
	return &UsageSummary{
		Plan:           string(s.Plan),
		Limit:          s.Limit,
		Used:           s.Used,
		Remaining:      s.Remaining,
		Credits:        s.Credits,
		ConsumedCredit: s.ConsumedCredit,
		ResetsAt:       s.ResetsAt,
	}
}

func toPremiumStatus(s *biz.PremiumStatus) *PremiumStatus {
	if s == nil {
		return nil
	}
	reply := &PremiumStatus{
		IsPremium:     s.IsPremium,
		DaysRemaining: s.DaysRemaining,
		ExpiresAt:     s.ExpiresAt,
		Grants:        make([]*PremiumGrant, 0, len(s.Grants)),
	}
	if s.IsPremium {
		source := string(s.Source)
		reply.Source = &source
	}
	for _, g := range s.Grants {
		reply.Grants = append(reply.Grants, &PremiumGrant{
			ID:        g.ID,
			Source:    string(g.Source),
			Days:      g.Days,
			StartDate: g.StartDate,
			EndDate:   g.EndDate,
			ReceiptID: g.ReceiptID,
			CreatedAt: g.CreatedAt,
		})
	}
	return reply
}

func toEntitlement(e *biz.Entitlement) *Entitlement {
	return &Entitlement{
		UserID:        e.UID,
		Allowed:       e.Allowed,
		ConsumeCredit: e.ConsumeCredit,
		Usage:         toUsageSummary(e.Usage),
		Premium:       toPremiumStatus(e.Premium),
	}
}
