package data

import (
	"context"
	"errors"
	"fmt"

	"entitlement-service/internal/biz"
	"entitlement-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// userRepo 用户相关数据访问
type userRepo struct {
	data *Data
	log  *log.Helper
}

// NewUserRepo 创建用户 repo（返回 biz.UserRepo 接口）
func NewUserRepo(data *Data, logger log.Logger) biz.UserRepo {
	return &userRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetUser 获取用户
// 积分余额不走缓存，购买后需要立即可见
func (r *userRepo) GetUser(ctx context.Context, userID string) (*biz.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID is required")
	}
	u, err := getUser(r.data.db.WithContext(ctx), userID)
	if err != nil {
		r.log.WithContext(ctx).Errorf("GetUser failed: userID=%s, error=%v", userID, err)
		return nil, err
	}
	return u, nil
}

// getUser 在给定连接（可以是事务）上读取用户，不存在时返回 nil, nil
func getUser(db *gorm.DB, userID string) (*biz.User, error) {
	var m model.User
	if err := db.Where("user_id = ?", userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user from database: %w", err)
	}
	plan, err := biz.ParseStoredPlan(m.Plan)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	return &biz.User{
		UID:           m.UserID,
		Plan:          plan,
		CreditBalance: m.CreditBalance,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}
