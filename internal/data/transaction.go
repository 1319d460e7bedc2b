package data

import (
	"context"
	"fmt"
	"time"

	"entitlement-service/internal/biz"
	"entitlement-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// transactor 数据库事务
type transactor struct {
	data *Data
	log  *log.Helper
}

// NewTransactor 创建事务执行器（返回 biz.Transactor 接口）
func NewTransactor(data *Data, logger log.Logger) biz.Transactor {
	return &transactor{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// InTx 在一个数据库事务中执行 fn，提交成功后再更新缓存
func (t *transactor) InTx(ctx context.Context, fn func(ctx context.Context, tx biz.LedgerTx) error) error {
	ltx := &ledgerTx{data: t.data}
	err := t.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ltx.tx = tx
		return fn(ctx, ltx)
	})
	if err != nil {
		return err
	}
	for _, hook := range ltx.afterCommit {
		hook(ctx, t.log)
	}
	return nil
}

// ledgerTx biz.LedgerTx 的 gorm 实现
type ledgerTx struct {
	data        *Data
	tx          *gorm.DB
	afterCommit []func(ctx context.Context, logger *log.Helper)
}

// GetUser 事务内读取用户并加行锁
func (l *ledgerTx) GetUser(ctx context.Context, userID string) (*biz.User, error) {
	return getUser(l.tx.Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

// IncrementUsage 插入或自增 (user_id, usage_day) 计数
func (l *ledgerTx) IncrementUsage(ctx context.Context, userID, usageDay string, at time.Time) (int, error) {
	counter := model.UsageCounter{
		UsageCounterID: uuid.New().String(),
		UserID:         userID,
		UsageDay:       usageDay,
		UsedCount:      1,
		LastUsedAt:     at,
	}
	err := l.tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "usage_day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"used_count":   gorm.Expr("usage_counter.used_count + 1"),
			"last_used_at": at,
			"updated_at":   at,
		}),
	}).Create(&counter).Error
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage counter: %w", err)
	}

	var m model.UsageCounter
	if err := l.tx.Where("user_id = ? AND usage_day = ?", userID, usageDay).Take(&m).Error; err != nil {
		return 0, fmt.Errorf("failed to read usage counter: %w", err)
	}

	count := m.UsedCount
	l.afterCommit = append(l.afterCommit, func(ctx context.Context, logger *log.Helper) {
		cacheUsage(ctx, l.data.rdb, logger, userID, usageDay, count)
	})
	return count, nil
}

// ConsumeCredit 条件扣减积分，余额为 0 时不扣减
func (l *ledgerTx) ConsumeCredit(ctx context.Context, userID string) (bool, error) {
	res := l.tx.Model(&model.User{}).
		Where("user_id = ? AND credit_balance > 0", userID).
		Update("credit_balance", gorm.Expr("credit_balance - 1"))
	if res.Error != nil {
		return false, fmt.Errorf("failed to consume credit: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AddCredits 增加积分余额
func (l *ledgerTx) AddCredits(ctx context.Context, userID string, amount int) error {
	res := l.tx.Model(&model.User{}).
		Where("user_id = ?", userID).
		Update("credit_balance", gorm.Expr("credit_balance + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to add credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return biz.NewError(biz.KindNotFound, "user %s not found", userID)
	}
	return nil
}

// CreateReceipt 创建收据
func (l *ledgerTx) CreateReceipt(ctx context.Context, receipt *biz.Receipt) error {
	return createReceipt(l.tx, receipt)
}

// CreatePremiumGrant 追加会员授权
func (l *ledgerTx) CreatePremiumGrant(ctx context.Context, grant *biz.PremiumGrant) error {
	return createPremiumGrant(l.tx, grant)
}
