package engine

import "time"

// EventKind 表示引擎對外發布的事件種類
type EventKind string

const (
	// EventBidPlaced 表示一筆出價被接受
	EventBidPlaced EventKind = "bid_placed"
	// EventPassed 表示玩家棄權
	EventPassed EventKind = "passed"
	// EventPriceReduced 表示全員棄權導致底價調降
	EventPriceReduced EventKind = "price_reduced"
	// EventLotWithdrawn 表示密封出價模式下標的無人出價而撤下
	EventLotWithdrawn EventKind = "lot_withdrawn"
	// EventLotSold 表示標的成交
	EventLotSold EventKind = "lot_sold"
	// EventFollowUpRequired 表示買家必須先完成後續定價
	EventFollowUpRequired EventKind = "follow_up_required"
	// EventFollowUpSet 表示買家完成後續定價
	EventFollowUpSet EventKind = "follow_up_set"
	// EventPurchaseRequired 表示密封出價只剩一位行動者，須執行購買
	EventPurchaseRequired EventKind = "purchase_required"
	// EventRoundComplete 表示回合結束，RoundResult 只隨此事件發布一次
	EventRoundComplete EventKind = "round_complete"
)

// Event 是一次成功動作產生的對外通知。
// 欄位依事件種類填寫，未用到的欄位保持零值。
type Event struct {
	Kind   EventKind    `json:"kind"`
	LotID  string       `json:"lotId,omitempty"`
	Seat   Seat         `json:"seat"`
	Amount int          `json:"amount,omitempty"`
	Result *RoundResult `json:"result,omitempty"`
	Time   time.Time    `json:"time"`
}

// SoldLot 是回合結果中一筆成交紀錄
type SoldLot struct {
	LotID string `json:"lotId"`
	Buyer Seat   `json:"buyerId"`
	Price int    `json:"price"`
	// ListingPrice 是需要後續定價的標的由買家選定的掛牌價
	ListingPrice int `json:"listingPrice,omitempty"`
}

// RoundResult 在回合結束時發布恰好一次
type RoundResult struct {
	RoundID    string    `json:"roundId"`
	SoldLots   []SoldLot `json:"soldLots"`
	UnsoldLots []string  `json:"unsoldLots"`
}
