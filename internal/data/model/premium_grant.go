package model

import (
	"time"
)

// PremiumGrant 会员授权表（只追加）
type PremiumGrant struct {
	PremiumGrantID string    `gorm:"primaryKey;type:varchar(36)"`
	UserID         string    `gorm:"type:varchar(36);not null;index:idx_user_end,priority:1"`
	Source         string    `gorm:"type:varchar(16);not null"` // PURCHASE / PROMOTIONAL / REFERRAL
	Days           int       `gorm:"not null"`
	StartDate      time.Time `gorm:"not null"`
	EndDate        time.Time `gorm:"not null;index:idx_user_end,priority:2"`
	ReceiptID      *string   `gorm:"type:varchar(36);index"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (PremiumGrant) TableName() string {
	return "premium_grant"
}
