package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Round 代表一個初始資本化拍賣回合
// 記錄回合使用的規則模式與完成時間
type Round struct {
	gorm.Model

	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;<-:create"`
	Mode        string     `gorm:"type:varchar(16);not null;<-:create"`
	PlayerCount int        `gorm:"type:integer;not null;<-:create"`
	CompletedAt *time.Time `gorm:"type:timestamp with time zone"`

	// 外鍵關聯
	Lots    []LotRecord
	Actions []ActionRecord
	Sales   []SaleRecord
}
