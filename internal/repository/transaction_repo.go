package repository

import (
	"context"
	"errors"

	"skillexchange/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	return conn(r.db, tx).WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// ListAll returns the whole ledger, most recent first.
func (r *TransactionRepository) ListAll(ctx context.Context) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&transactions).Error
	return transactions, err
}

// ListByUserID returns every transaction the user sent or received, most recent first.
func (r *TransactionRepository) ListByUserID(ctx context.Context, tx *gorm.DB, userID int64) ([]*model.Transaction, error) {
	transactions := make([]*model.Transaction, 0)
	err := conn(r.db, tx).WithContext(ctx).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&transactions).Error
	return transactions, err
}

type userSum struct {
	UserID int64
	Total  int64
}

// NetByUser returns, per user, coins received minus coins sent across the whole ledger.
func (r *TransactionRepository) NetByUser(ctx context.Context, tx *gorm.DB) (map[int64]int64, error) {
	var received, sent []userSum
	db := conn(r.db, tx).WithContext(ctx)

	err := db.Model(&model.Transaction{}).
		Select("to_user_id AS user_id, SUM(skillcoins_transferred) AS total").
		Where("to_user_id IS NOT NULL").
		Group("to_user_id").
		Scan(&received).Error
	if err != nil {
		return nil, err
	}

	err = db.Model(&model.Transaction{}).
		Select("from_user_id AS user_id, SUM(skillcoins_transferred) AS total").
		Where("from_user_id IS NOT NULL").
		Group("from_user_id").
		Scan(&sent).Error
	if err != nil {
		return nil, err
	}

	net := make(map[int64]int64, len(received))
	for _, s := range received {
		net[s.UserID] += s.Total
	}
	for _, s := range sent {
		net[s.UserID] -= s.Total
	}
	return net, nil
}
