package repository

import (
	"context"

	"skillexchange/internal/model"

	"gorm.io/gorm"
)

type DonationRepository struct {
	db *gorm.DB
}

func NewDonationRepository(db *gorm.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) Create(ctx context.Context, tx *gorm.DB, donation *model.Donation) error {
	return conn(r.db, tx).WithContext(ctx).Create(donation).Error
}

// List returns donations, most recent first. A non-nil userID keeps only donations the
// user gave or received.
func (r *DonationRepository) List(ctx context.Context, userID *int64) ([]*model.Donation, error) {
	donations := make([]*model.Donation, 0)
	query := r.db.WithContext(ctx).Model(&model.Donation{})
	if userID != nil {
		query = query.Where("from_user_id = ? OR to_user_id = ?", *userID, *userID)
	}
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Find(&donations).Error
	return donations, err
}
