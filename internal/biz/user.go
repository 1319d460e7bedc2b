package biz

import (
	"context"
	"fmt"
	"time"
)

// Plan 套餐
type Plan string

const (
	PlanFree     Plan = "FREE"
	PlanStandard Plan = "STANDARD"
	// PlanPremium 由有效的会员授权推导，不直接存储
	PlanPremium Plan = "PREMIUM"
)

// Plans 全部已知套餐
var Plans = []Plan{PlanFree, PlanStandard, PlanPremium}

// ParsePlan 解析套餐名称
func ParsePlan(s string) (Plan, error) {
	switch Plan(s) {
	case PlanFree, PlanStandard, PlanPremium:
		return Plan(s), nil
	default:
		return "", fmt.Errorf("unknown plan %q", s)
	}
}

// ParseStoredPlan 解析用户表中的套餐（PREMIUM 不允许直接存储）
func ParseStoredPlan(s string) (Plan, error) {
	plan, err := ParsePlan(s)
	if err != nil {
		return "", err
	}
	if plan == PlanPremium {
		return "", fmt.Errorf("plan %q is derived and cannot be stored", s)
	}
	return plan, nil
}

// User 用户领域对象
type User struct {
	UID           string
	Plan          Plan
	CreditBalance int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserRepo 用户数据层接口（定义在 biz 层）
// 用户不存在时返回 nil, nil
type UserRepo interface {
	GetUser(ctx context.Context, userID string) (*User, error)
}
