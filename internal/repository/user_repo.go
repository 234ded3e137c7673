package repository

import (
	"context"
	"errors"

	"skillexchange/internal/model"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient skillcoins")
)

// conn picks the caller's transaction when there is one.
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return db
	}
	return tx
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, tx *gorm.DB, user *model.User) error {
	return conn(r.db, tx).WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	var user model.User
	err := conn(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ApplyDelta adds delta (possibly negative) to the user's balance in a single guarded
// statement and returns the new balance. The guard keeps the balance non-negative, so a
// concurrent debit can never overdraw.
//
// Zero rows affected is split into ErrUserNotFound and ErrInsufficientBalance by a
// follow-up read on the same connection.
func (r *UserRepository) ApplyDelta(ctx context.Context, tx *gorm.DB, userID int64, delta int64) (int64, error) {
	db := conn(r.db, tx).WithContext(ctx)

	result := db.Model(&model.User{}).
		Where("id = ? AND skillcoins + ? >= 0", userID, delta).
		Update("skillcoins", gorm.Expr("skillcoins + ?", delta))
	if result.Error != nil {
		return 0, result.Error
	}

	user, err := r.GetByID(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	if result.RowsAffected == 0 {
		return user.Skillcoins, ErrInsufficientBalance
	}
	return user.Skillcoins, nil
}

// ListBalances returns every user's id and balance, ordered by id.
func (r *UserRepository) ListBalances(ctx context.Context, tx *gorm.DB) ([]*model.User, error) {
	var users []*model.User
	err := conn(r.db, tx).WithContext(ctx).
		Select("id", "username", "skillcoins").
		Order("id ASC").
		Find(&users).Error
	return users, err
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error
	return n, err
}
