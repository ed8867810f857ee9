package engine

import "fmt"

// LotStatus 表示標的在拍賣生命週期中的狀態
type LotStatus int

const (
	// LotUnavailable 表示標的目前不可競標（附贈標的或已撤下）
	LotUnavailable LotStatus = iota
	// LotBiddable 表示標的可被出價或直接購買
	LotBiddable
	// LotAuctioned 表示標的已有出價，正在競標中
	LotAuctioned
	// LotNeedsFollowUp 表示標的已成交但買家尚未完成後續定價
	LotNeedsFollowUp
	// LotSold 表示標的已售出，狀態不再改變
	LotSold
)

func (s LotStatus) String() string {
	switch s {
	case LotUnavailable:
		return "unavailable"
	case LotBiddable:
		return "biddable"
	case LotAuctioned:
		return "auctioned"
	case LotNeedsFollowUp:
		return "needs_follow_up"
	case LotSold:
		return "sold"
	}
	return fmt.Sprintf("LotStatus(%d)", int(s))
}

// Terminal 判斷狀態是否為終態（不再接受出價）
func (s LotStatus) Terminal() bool {
	return s == LotNeedsFollowUp || s == LotSold
}

// LotDef 是外部設定載入器提供的標的定義
type LotDef struct {
	ID             string `json:"id" mapstructure:"id"`
	BasePrice      int    `json:"basePrice" mapstructure:"basePrice"`
	Modulus        int    `json:"modulus" mapstructure:"modulus"`
	Tier           int    `json:"tier" mapstructure:"tier"`
	SecondaryLotID string `json:"secondaryLotId,omitempty" mapstructure:"secondaryLotId"`
	NeedsFollowUp  bool   `json:"needsFollowUp" mapstructure:"needsFollowUp"`
	Secondary      bool   `json:"secondary" mapstructure:"secondary"`
}

// Lot 表示一個可出售的創始股權單位。
// 識別資訊（ID、Index、價格參數）在回合期間不變；
// 狀態欄位只由引擎修改，進入 LotSold 後即凍結。
type Lot struct {
	ID             string
	Index          int
	BasePrice      int
	Modulus        int
	Tier           int
	SecondaryLotID string
	NeedsFollowUp  bool

	Status        LotStatus
	MinBid        int
	HighestBidder Seat
	HighestBid    int
}

// CurrentPrice 回傳目前成交此標的需要的價格：
// 有出價時為最高出價，否則為底價。
func (l *Lot) CurrentPrice() int {
	if l.HighestBidder != NoSeat {
		return l.HighestBid
	}
	return l.BasePrice
}

// Registry 持有回合內有序的標的集合。
// 只負責儲存與簡單查詢，不包含任何驗證邏輯。
type Registry struct {
	lots []*Lot
	byID map[string]*Lot
}

// NewRegistry 依據標的定義建立 Registry。
// 附贈標的（Secondary）以 LotUnavailable 建立，其餘為 LotBiddable。
func NewRegistry(defs []LotDef) (*Registry, error) {
	const op = "NewRegistry"
	if len(defs) == 0 {
		return nil, fmt.Errorf("[%s] no lot definitions", op)
	}
	reg := &Registry{byID: make(map[string]*Lot, len(defs))}
	for i, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("[%s] lot %d has empty id", op, i)
		}
		if _, ok := reg.byID[def.ID]; ok {
			return nil, fmt.Errorf("[%s] duplicate lot id %q", op, def.ID)
		}
		if def.BasePrice < 0 {
			return nil, fmt.Errorf("[%s] lot %q has negative base price", op, def.ID)
		}
		if def.Modulus <= 0 {
			return nil, fmt.Errorf("[%s] lot %q has non-positive modulus", op, def.ID)
		}
		status := LotBiddable
		if def.Secondary {
			status = LotUnavailable
		}
		lot := &Lot{
			ID:             def.ID,
			Index:          i,
			BasePrice:      def.BasePrice,
			Modulus:        def.Modulus,
			Tier:           def.Tier,
			SecondaryLotID: def.SecondaryLotID,
			NeedsFollowUp:  def.NeedsFollowUp,
			Status:         status,
			MinBid:         def.BasePrice,
			HighestBidder:  NoSeat,
		}
		reg.lots = append(reg.lots, lot)
		reg.byID[def.ID] = lot
	}
	// 附贈標的必須存在且不可自己也是主標的
	for _, lot := range reg.lots {
		if lot.SecondaryLotID == "" {
			continue
		}
		sec, ok := reg.byID[lot.SecondaryLotID]
		if !ok {
			return nil, fmt.Errorf("[%s] lot %q references unknown secondary lot %q", op, lot.ID, lot.SecondaryLotID)
		}
		if sec.Status != LotUnavailable {
			return nil, fmt.Errorf("[%s] secondary lot %q must be marked secondary", op, sec.ID)
		}
	}
	return reg, nil
}

// Lot 依 ID 查詢標的
func (r *Registry) Lot(id string) (*Lot, bool) {
	lot, ok := r.byID[id]
	return lot, ok
}

// Lots 回傳所有標的（依定義順序）
func (r *Registry) Lots() []*Lot {
	return r.lots
}

// Biddable 回傳目前所有可出價的標的
func (r *Registry) Biddable() []*Lot {
	var out []*Lot
	for _, lot := range r.lots {
		if lot.Status == LotBiddable || lot.Status == LotAuctioned {
			out = append(out, lot)
		}
	}
	return out
}

// FirstUnsold 回傳順位最前的未售出標的，全部售出時回傳 nil
func (r *Registry) FirstUnsold() *Lot {
	for _, lot := range r.lots {
		if lot.Status == LotBiddable || lot.Status == LotAuctioned {
			return lot
		}
	}
	return nil
}

// Settled 判斷是否所有標的都已結束（售出、待定價或撤下）
func (r *Registry) Settled() bool {
	for _, lot := range r.lots {
		if lot.Status == LotBiddable || lot.Status == LotAuctioned {
			return false
		}
	}
	return true
}

// ReduceBasePrice 將標的底價調降 amount，最低降到零。
// 標的尚無出價時 MinBid 跟著底價下修。
func (r *Registry) ReduceBasePrice(lot *Lot, amount int) {
	lot.BasePrice -= amount
	if lot.BasePrice < 0 {
		lot.BasePrice = 0
	}
	if lot.HighestBidder == NoSeat {
		lot.MinBid = lot.BasePrice
	}
}
