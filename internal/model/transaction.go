package model

import (
	"time"
)

// ============================================================================
// Transaction types
// ============================================================================

const (
	TransactionTypePurchased  = "Purchased"  // wallet top-up backed by an external payment
	TransactionTypeDonation   = "Donation"   // voluntary user-to-user transfer
	TransactionTypeService    = "Service"    // payment for a service between two users
	TransactionTypeAdjustment = "Adjustment" // administrative balance correction
)

// Direction of a transaction as seen by one wallet owner.
const (
	DirectionEarned = "Earned"
	DirectionSpent  = "Spent"
)

// SystemUserID is the legacy sentinel for system-originated events. It is accepted on
// input and stored as a NULL user reference.
const SystemUserID int64 = 0

// PurchaseDescription labels every payment-backed credit.
const PurchaseDescription = "SkillCoins purchase"

// ============================================================================
// Transaction
// ============================================================================

// Transaction is one append-only ledger event. A nil FromUserID means the system
// created the coins; a nil ToUserID means the system absorbed them.
type Transaction struct {
	ID                    int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo         string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	FromUserID            *int64    `gorm:"index" json:"from_user_id"`
	ToUserID              *int64    `gorm:"index" json:"to_user_id"`
	ServiceID             *int64    `json:"service_id"`
	SkillcoinsTransferred int64     `gorm:"not null" json:"skillcoins_transferred"`
	Description           string    `gorm:"type:varchar(256)" json:"description"`
	TransactionType       string    `gorm:"type:varchar(20);index;not null" json:"transaction_type"`
	CreatedAt             time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// DirectionFor reports whether userID gained or spent coins in t.
func (t *Transaction) DirectionFor(userID int64) string {
	if t.ToUserID != nil && *t.ToUserID == userID {
		return DirectionEarned
	}
	return DirectionSpent
}

// UserRef converts a wire user id to a stored reference, mapping the system sentinel to nil.
func UserRef(id int64) *int64 {
	if id == SystemUserID {
		return nil
	}
	return &id
}
