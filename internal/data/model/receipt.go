package model

import (
	"time"
)

// Receipt 购买收据表（transaction_id 全局唯一，用于幂等性保证）
type Receipt struct {
	ReceiptID             string    `gorm:"primaryKey;type:varchar(36)"`
	TransactionID         string    `gorm:"type:varchar(100);not null;uniqueIndex:uk_transaction_id"`
	UserID                string    `gorm:"type:varchar(36);not null;index"`
	Platform              string    `gorm:"type:varchar(16);not null"`
	ProductID             string    `gorm:"type:varchar(100);not null"`
	OriginalTransactionID *string   `gorm:"type:varchar(100);index"`
	Environment           string    `gorm:"type:varchar(16)"`
	Quantity              int       `gorm:"not null;default:1"`
	CreditsGranted        int       `gorm:"not null;default:0"`
	PremiumDays           int       `gorm:"not null;default:0"`
	PurchasedAt           time.Time `gorm:"not null"`
	ExpiresAt             *time.Time
	RawPayload            string    `gorm:"type:text"`
	Status                string    `gorm:"type:varchar(16);not null"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Receipt) TableName() string {
	return "receipt"
}
