package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SaleRecord 代表一筆成交紀錄
// 包含買家座位、成交價與後續定價（若標的需要）
type SaleRecord struct {
	gorm.Model

	ID           uuid.UUID `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	RoundID      uuid.UUID `gorm:"type:uuid;not null;<-:create"`
	LotID        string    `gorm:"type:varchar(64);not null;<-:create"`
	BuyerSeat    int       `gorm:"type:integer;not null;<-:create"`
	Price        int       `gorm:"type:integer;not null;<-:create"`
	// ListingPrice 在買家完成後續定價時才會補上
	ListingPrice int `gorm:"type:integer"`

	// 外鍵關聯
	Round Round
}
