package model

import (
	"time"
)

// Donation indexes a donation transaction for display. It is written in the same
// database transaction as the Transaction it references and never changed afterwards.
type Donation struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID int64     `gorm:"uniqueIndex;not null" json:"transaction_id"`
	FromUserID    int64     `gorm:"index;not null" json:"from_user_id"`
	ToUserID      *int64    `gorm:"index" json:"to_user_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Message       string    `gorm:"type:varchar(256)" json:"message,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Donation) TableName() string {
	return "donations"
}
