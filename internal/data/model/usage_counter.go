package model

import (
	"time"
)

// UsageCounter 每日使用计数表，每个用户每个使用日一行
type UsageCounter struct {
	UsageCounterID string    `gorm:"primaryKey;type:varchar(36)"`
	UserID         string    `gorm:"type:varchar(36);not null;uniqueIndex:uk_user_day,priority:1"`
	UsageDay       string    `gorm:"type:varchar(10);not null;uniqueIndex:uk_user_day,priority:2;index:idx_usage_day"` // 2024-11-05
	UsedCount      int       `gorm:"not null;default:0"`
	LastUsedAt     time.Time `gorm:"not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (UsageCounter) TableName() string {
	return "usage_counter"
}
