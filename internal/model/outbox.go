package model

import (
	"encoding/json"
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage is a ledger event waiting to be published. Rows are inserted in the
// same database transaction as the balance change they describe.
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(128);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// LedgerEvent is the Kafka payload describing a committed Transaction.
type LedgerEvent struct {
	Event         string    `json:"event"`
	TransactionNo string    `json:"transaction_no"`
	FromUserID    *int64    `json:"from_user_id"`
	ToUserID      *int64    `json:"to_user_id"`
	Amount        int64     `json:"amount"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewLedgerOutbox builds the outbox row announcing t on topic.
func NewLedgerOutbox(topic string, t *Transaction) (*OutboxMessage, error) {
	payload, err := json.Marshal(LedgerEvent{
		Event:         "ledger.transaction.created",
		TransactionNo: t.TransactionNo,
		FromUserID:    t.FromUserID,
		ToUserID:      t.ToUserID,
		Amount:        t.SkillcoinsTransferred,
		Type:          t.TransactionType,
		CreatedAt:     t.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return &OutboxMessage{
		MessageKey: t.TransactionNo,
		Topic:      topic,
		Payload:    string(payload),
		Status:     OutboxStatusPending,
	}, nil
}
