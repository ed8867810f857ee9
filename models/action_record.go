package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActionRecord 代表引擎接受的一個動作事件
// 由稽核 worker 從 Redis Stream 同步回資料庫
type ActionRecord struct {
	gorm.Model

	ID       uuid.UUID `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	RoundID  uuid.UUID `gorm:"type:uuid;not null;<-:create"`
	Sequence uint64    `gorm:"type:bigint;not null;<-:create"`
	Kind     string    `gorm:"type:varchar(32);not null;<-:create"`
	LotID    string    `gorm:"type:varchar(64);<-:create"`
	Seat     int       `gorm:"type:integer;not null;<-:create"`
	Amount   int       `gorm:"type:integer;<-:create"`
	At       time.Time `gorm:"type:timestamp with time zone;not null;<-:create"`

	// 外鍵關聯
	Round Round
}
