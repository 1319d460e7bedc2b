package data

import (
	"context"
	"errors"
	"fmt"

	"entitlement-service/internal/biz"
	"entitlement-service/internal/data/model"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// receiptRepo 收据相关数据访问
type receiptRepo struct {
	data *Data
	log  *log.Helper
}

// NewReceiptRepo 创建收据 repo（返回 biz.ReceiptRepo 接口）
func NewReceiptRepo(data *Data, logger log.Logger) biz.ReceiptRepo {
	return &receiptRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetReceiptByTransactionID 通过交易号查询收据
func (r *receiptRepo) GetReceiptByTransactionID(ctx context.Context, transactionID string) (*biz.Receipt, error) {
	var m model.Receipt
	if err := r.data.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return toBizReceipt(&m), nil
}

// createReceipt 在事务内插入收据，交易号重复时返回 biz.ErrDuplicateTransaction
func createReceipt(tx *gorm.DB, receipt *biz.Receipt) error {
	m := model.Receipt{
		ReceiptID:      receipt.ID,
		TransactionID:  receipt.TransactionID,
		UserID:         receipt.UID,
		Platform:       string(receipt.Platform),
		ProductID:      receipt.ProductID,
		Environment:    receipt.Environment,
		Quantity:       receipt.Quantity,
		CreditsGranted: receipt.CreditsGranted,
		PremiumDays:    receipt.PremiumDays,
		PurchasedAt:    receipt.PurchasedAt,
		ExpiresAt:      receipt.ExpiresAt,
		RawPayload:     receipt.RawPayload,
		Status:         receipt.Status,
		CreatedAt:      receipt.CreatedAt,
	}
	if receipt.OriginalTransactionID != "" {
		m.OriginalTransactionID = &receipt.OriginalTransactionID
	}
	if err := tx.Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return biz.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to create receipt: %w", err)
	}
	return nil
}

func toBizReceipt(m *model.Receipt) *biz.Receipt {
	receipt := &biz.Receipt{
		ID:             m.ReceiptID,
		TransactionID:  m.TransactionID,
		UID:            m.UserID,
		Platform:       biz.Platform(m.Platform),
		ProductID:      m.ProductID,
		Environment:    m.Environment,
		Quantity:       m.Quantity,
		CreditsGranted: m.CreditsGranted,
		PremiumDays:    m.PremiumDays,
		PurchasedAt:    m.PurchasedAt,
		ExpiresAt:      m.ExpiresAt,
		RawPayload:     m.RawPayload,
		Status:         m.Status,
		CreatedAt:      m.CreatedAt,
	}
	if m.OriginalTransactionID != nil {
		receipt.OriginalTransactionID = *m.OriginalTransactionID
	}
	return receipt
}
