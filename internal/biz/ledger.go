package biz

import (
	"context"
	"time"
)

// LedgerTx 单个存储事务内可用的操作
// 所有用于决定写入的可变余额读取都必须通过同一个 LedgerTx 完成
type LedgerTx interface {
	// GetUser 事务内读取用户，不存在时返回 nil, nil
	GetUser(ctx context.Context, userID string) (*User, error)
	// IncrementUsage 按 (userID, usageDay) 插入或自增计数，返回自增后的次数
	IncrementUsage(ctx context.Context, userID, usageDay string, at time.Time) (int, error)
	// ConsumeCredit 积分余额 > 0 时扣减 1，返回是否扣减成功
	ConsumeCredit(ctx context.Context, userID string) (bool, error)
	// AddCredits 增加积分余额
	AddCredits(ctx context.Context, userID string, amount int) error
	// CreateReceipt 创建收据，transaction_id 已存在时返回 ErrDuplicateTransaction
	CreateReceipt(ctx context.Context, receipt *Receipt) error
	// CreatePremiumGrant 追加会员授权
	CreatePremiumGrant(ctx context.Context, grant *PremiumGrant) error
}

// Transactor 在一个原子事务中执行 fn，fn 返回错误时整体回滚
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// Locker 分布式锁，返回的 unlock 可重复调用
type Locker interface {
	Lock(ctx context.Context, key string, expiry time.Duration) (unlock func(), err error)
}

// PurchaseAppliedEvent 购买生效后发送到 RocketMQ 的事件
type PurchaseAppliedEvent struct {
	ReceiptID      string    `json:"receipt_id"`
	TransactionID  string    `json:"transaction_id"`
	UserID         string    `json:"user_id"`
	Platform       string    `json:"platform"`
	ProductID      string    `json:"product_id"`
	CreditsGranted int       `json:"credits_granted"`
	PremiumDays    int       `json:"premium_days"`
	PurchasedAt    time.Time `json:"purchased_at"`
	AppliedAt      time.Time `json:"applied_at"`
}

// EventPublisher 事件发布（未启用 MQ 时为空实现）
type EventPublisher interface {
	PublishPurchaseApplied(ctx context.Context, event *PurchaseAppliedEvent) error
}
