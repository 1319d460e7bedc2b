package biz

import (
	"context"
	"fmt"
	"time"
)

// Platform 购买平台
type Platform string

const (
	PlatformAppStore   Platform = "APP_STORE"
	PlatformGooglePlay Platform = "GOOGLE_PLAY"
)

// ParsePlatform 解析平台名称
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformAppStore, PlatformGooglePlay:
		return Platform(s), nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

// Receipt 收据领域对象，transaction_id 全局唯一且只属于一个用户
type Receipt struct {
	ID                    string
	TransactionID         string
	UID                   string
	Platform              Platform
	ProductID             string
	OriginalTransactionID string // 可为空
	Environment           string
	Quantity              int
	CreditsGranted        int
	PremiumDays           int
	PurchasedAt           time.Time
	ExpiresAt             *time.Time
	RawPayload            string
	Status                string
	CreatedAt             time.Time
}

// ReceiptRepo 收据数据层接口（定义在 biz 层）
type ReceiptRepo interface {
	// GetReceiptByTransactionID 不存在时返回 nil, nil
	GetReceiptByTransactionID(ctx context.Context, transactionID string) (*Receipt, error)
}

// VerifyInput 收据校验输入
type VerifyInput struct {
	Platform      Platform
	ProductID     string
	TransactionID string
	ReceiptData   string // base64
	Environment   string // 可为空
	Quantity      int    // 可为 0
}

// VerificationResult 校验通过后的交易信息
type VerificationResult struct {
	TransactionID         string
	ProductID             string
	OriginalTransactionID string
	Quantity              int // 0 表示平台未返回
	PurchaseDate          time.Time
	ExpiresDate           *time.Time
	IsTrial               bool
	Environment           string
	Raw                   string
}

// ReceiptVerifier 收据校验
// 失败时返回 KindInvalidReceipt / KindVerificationFailed / KindUnsupportedPlatform
type ReceiptVerifier interface {
	Verify(ctx context.Context, in *VerifyInput) (*VerificationResult, error)
}
