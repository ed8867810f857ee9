package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LotRecord 代表回合建立時登記的一個標的
// 保存標的的靜態定義，供賽後稽核重建回合設定
type LotRecord struct {
	gorm.Model

	ID            uuid.UUID `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	RoundID       uuid.UUID `gorm:"type:uuid;not null;<-:create"`
	LotID         string    `gorm:"type:varchar(64);not null;<-:create"`
	Title         string    `gorm:"type:varchar(255);not null;<-:create"`
	Description   string    `gorm:"type:text;not null;<-:create"`
	BasePrice     int       `gorm:"type:integer;not null;<-:create"`
	Modulus       int       `gorm:"type:integer;not null;<-:create"`
	Tier          int       `gorm:"type:integer;not null;<-:create"`
	NeedsFollowUp bool      `gorm:"type:boolean;not null;<-:create"`

	// 外鍵關聯
	Round Round
}
