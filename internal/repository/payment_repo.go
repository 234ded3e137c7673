package repository

import (
	"context"
	"errors"

	"skillexchange/internal/model"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *gorm.DB, payment *model.PaymentTransaction) error {
	return conn(r.db, tx).WithContext(ctx).Create(payment).Error
}

// GetByProviderTransactionID returns nil, nil when the provider event was never credited.
func (r *PaymentRepository) GetByProviderTransactionID(ctx context.Context, tx *gorm.DB, providerTxID string) (*model.PaymentTransaction, error) {
	var payment model.PaymentTransaction
	err := conn(r.db, tx).WithContext(ctx).
		Where("provider_transaction_id = ?", providerTxID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.PaymentTransaction, error) {
	payments := make([]*model.PaymentTransaction, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&payments).Error
	return payments, err
}
