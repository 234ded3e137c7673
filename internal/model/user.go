package model

import (
	"time"
)

// User holds a member's spendable SkillCoin balance.
// Skillcoins is only changed through guarded increments in UserRepository.ApplyDelta.
type User struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Skillcoins int64     `gorm:"not null;default:0" json:"skillcoins"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
