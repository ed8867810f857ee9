package engine

import "fmt"

// Mode 表示回合採用哪一種拍賣協議
type Mode int

const (
	// ModeAscending 表示英式公開喊價：一次只競標一個標的
	ModeAscending Mode = iota
	// ModeSealed 表示密封出價：多個標的同時開放，逐輪淘汰
	ModeSealed
)

func (m Mode) String() string {
	if m == ModeSealed {
		return "sealed"
	}
	return "ascending"
}

// PriorityPolicy 決定標的售出後優先權指標如何移動。
// 不同遊戲版本對此規則不一致，因此由規則組合各自宣告。
type PriorityPolicy int

const (
	// PriorityStays 表示售出後優先權不動
	PriorityStays PriorityPolicy = iota
	// PriorityPastWinner 表示優先權移到買家的下一位
	PriorityPastWinner
)

// RuleSet 是單一引擎的變體參數組合。
// 各遊戲版本以不同的參數重組這些規則，而不是各自繼承覆寫。
type RuleSet struct {
	Mode Mode `json:"mode" mapstructure:"mode"`
	// Increment 是有人出價後最低出價在最高價之上的加價幅度
	Increment int `json:"increment" mapstructure:"increment"`
	// Decrement 是無人出價、全員棄權時底價的調降幅度
	Decrement int `json:"decrement" mapstructure:"decrement"`
	// AutoResolveSingleBidder 表示競標中只剩一位行動者時直接結標
	AutoResolveSingleBidder bool `json:"autoResolveSingleBidder" mapstructure:"autoResolveSingleBidder"`
	// Priority 是售出後的優先權移動策略
	Priority PriorityPolicy `json:"priority" mapstructure:"priority"`
	// TierFloorUnit 是密封出價模式下每一階層的最低出價單位：
	// 標的階層為 t 時出價下限為 t*TierFloorUnit 與底價取大者
	TierFloorUnit int `json:"tierFloorUnit" mapstructure:"tierFloorUnit"`
}

// Validate 檢查規則組合是否自洽
func (rs RuleSet) Validate() error {
	const op = "RuleSet.Validate"
	if rs.Increment <= 0 {
		return fmt.Errorf("[%s] increment must be positive, got %d", op, rs.Increment)
	}
	if rs.Mode == ModeAscending && rs.Decrement <= 0 {
		return fmt.Errorf("[%s] decrement must be positive in ascending mode, got %d", op, rs.Decrement)
	}
	if rs.Mode == ModeSealed && rs.TierFloorUnit < 0 {
		return fmt.Errorf("[%s] tier floor unit cannot be negative, got %d", op, rs.TierFloorUnit)
	}
	return nil
}

// SealedFloor 回傳密封出價模式下標的的最低出價
func (rs RuleSet) SealedFloor(lot *Lot) int {
	floor := lot.Tier * rs.TierFloorUnit
	if floor < lot.BasePrice {
		floor = lot.BasePrice
	}
	return floor
}
