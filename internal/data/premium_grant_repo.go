package data

import (
	"context"
	"fmt"

	"entitlement-service/internal/biz"
	"entitlement-service/internal/data/model"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// premiumGrantRepo 会员授权数据访问
type premiumGrantRepo struct {
	data *Data
	log  *log.Helper
}

// NewPremiumGrantRepo 创建会员授权 repo（返回 biz.PremiumGrantRepo 接口）
func NewPremiumGrantRepo(data *Data, logger log.Logger) biz.PremiumGrantRepo {
	return &premiumGrantRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// ListPremiumGrants 查询用户全部授权（按创建时间倒序）
func (r *premiumGrantRepo) ListPremiumGrants(ctx context.Context, userID string) ([]*biz.PremiumGrant, error) {
	var models []model.PremiumGrant
	if err := r.data.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	grants := make([]*biz.PremiumGrant, 0, len(models))
	for i := range models {
		m := &models[i]
		g := &biz.PremiumGrant{
			ID:        m.PremiumGrantID,
			UID:       m.UserID,
			Source:    biz.GrantSource(m.Source),
			Days:      m.Days,
			StartDate: m.StartDate,
			EndDate:   m.EndDate,
			CreatedAt: m.CreatedAt,
		}
		if m.ReceiptID != nil {
			g.ReceiptID = *m.ReceiptID
		}
		grants = append(grants, g)
	}
	return grants, nil
}

// createPremiumGrant 在事务内追加授权
func createPremiumGrant(tx *gorm.DB, grant *biz.PremiumGrant) error {
	m := model.PremiumGrant{
		PremiumGrantID: grant.ID,
		UserID:         grant.UID,
		Source:         string(grant.Source),
		Days:           grant.Days,
		StartDate:      grant.StartDate,
		EndDate:        grant.EndDate,
		CreatedAt:      grant.CreatedAt,
	}
	if grant.ReceiptID != "" {
		m.ReceiptID = &grant.ReceiptID
	}
	if err := tx.Create(&m).Error; err != nil {
		return fmt.Errorf("failed to create premium grant: %w", err)
	}
	return nil
}
