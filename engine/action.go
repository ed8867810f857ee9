package engine

import "fmt"

// ActionKind 表示提交動作的種類
type ActionKind string

const (
	ActBid         ActionKind = "bid"
	ActPass        ActionKind = "pass"
	ActBuy         ActionKind = "buy"
	ActSetFollowUp ActionKind = "set_follow_up_price"
)

// Action 是引擎唯一的變更入口。
// 出價與購買需要 LotID；出價與定價需要 Amount。
type Action struct {
	Kind   ActionKind `json:"kind"`
	Seat   Seat       `json:"seat"`
	LotID  string     `json:"lotId,omitempty"`
	Amount int        `json:"amount,omitempty"`
}

// BidAction 建立出價動作
func BidAction(seat Seat, lotID string, amount int) Action {
	return Action{Kind: ActBid, Seat: seat, LotID: lotID, Amount: amount}
}

// PassAction 建立棄權動作
func PassAction(seat Seat) Action {
	return Action{Kind: ActPass, Seat: seat}
}

// BuyAction 建立直接購買動作
func BuyAction(seat Seat, lotID string) Action {
	return Action{Kind: ActBuy, Seat: seat, LotID: lotID}
}

// FollowUpAction 建立後續定價動作
func FollowUpAction(seat Seat, lotID string, price int) Action {
	return Action{Kind: ActSetFollowUp, Seat: seat, LotID: lotID, Amount: price}
}

func (a Action) String() string {
	switch a.Kind {
	case ActPass:
		return fmt.Sprintf("pass(seat=%d)", a.Seat)
	case ActBuy:
		return fmt.Sprintf("buy(seat=%d, lot=%s)", a.Seat, a.LotID)
	case ActSetFollowUp:
		return fmt.Sprintf("set_follow_up_price(seat=%d, lot=%s, price=%d)", a.Seat, a.LotID, a.Amount)
	}
	return fmt.Sprintf("bid(seat=%d, lot=%s, amount=%d)", a.Seat, a.LotID, a.Amount)
}
