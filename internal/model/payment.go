package model

import (
	"time"
)

const (
	PaymentStatusCompleted = "completed"
)

// PaymentTransaction records one confirmed external payment. ProviderTransactionID is
// unique so a provider event can be credited at most once.
type PaymentTransaction struct {
	ID                    int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                int64     `gorm:"index;not null" json:"user_id"`
	Amount                int64     `gorm:"not null" json:"amount"`
	Reference             string    `gorm:"type:varchar(128);not null" json:"reference"`
	ProviderTransactionID string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"provider_transaction_id"`
	TransactionID         int64     `gorm:"index;not null" json:"transaction_id"`
	Status                string    `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}
