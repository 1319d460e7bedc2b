package model

import (
	"time"
)

// User 用户权益表（套餐与积分余额）
// PREMIUM 由 premium_grant 推导，plan 只存 FREE / STANDARD
type User struct {
	UserID        string    `gorm:"primaryKey;type:varchar(36)"`
	Plan          string    `gorm:"type:varchar(16);not null;default:'FREE'"`
	CreditBalance int       `gorm:"not null;default:0;check:credit_balance >= 0"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
