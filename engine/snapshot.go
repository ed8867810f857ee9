package engine

// LotSnapshot 是標的狀態的唯讀視圖
type LotSnapshot struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	BasePrice     int    `json:"basePrice"`
	MinBid        int    `json:"minBid"`
	HighestBidder Seat   `json:"highestBidder"`
	HighestBid    int    `json:"highestBid"`
}

// PlayerSnapshot 是玩家資金狀態的唯讀視圖
type PlayerSnapshot struct {
	Seat        Seat `json:"seat"`
	FreeCash    int  `json:"freeCash"`
	BlockedCash int  `json:"blockedCash"`
}

// Snapshot 是回合狀態的唯讀視圖，展示層可隨時取用而不影響引擎
type Snapshot struct {
	RoundID  string           `json:"roundId"`
	Mode     string           `json:"mode"`
	Phase    string           `json:"phase"`
	Current  Seat             `json:"currentPlayer"`
	Priority Seat             `json:"priorityPlayer"`
	OpenLot  string           `json:"openLot,omitempty"`
	Lots     []LotSnapshot    `json:"lots"`
	Players  []PlayerSnapshot `json:"players"`
}

// Snapshot 建立目前狀態的視圖。
// 密封出價模式下競標中標的的最高出價不揭露。
func (r *Round) Snapshot() Snapshot {
	snap := Snapshot{
		RoundID:  r.id,
		Mode:     r.rules.Mode.String(),
		Phase:    r.phase.String(),
		Current:  r.seq.Current(),
		Priority: r.seq.Priority(),
	}
	if r.openLot != nil {
		snap.OpenLot = r.openLot.ID
	}
	for _, lot := range r.reg.Lots() {
		ls := LotSnapshot{
			ID:            lot.ID,
			Status:        lot.Status.String(),
			BasePrice:     lot.BasePrice,
			MinBid:        lot.MinBid,
			HighestBidder: lot.HighestBidder,
			HighestBid:    lot.HighestBid,
		}
		if r.rules.Mode == ModeSealed && lot.Status == LotAuctioned {
			ls.HighestBidder = NoSeat
			ls.HighestBid = 0
			ls.MinBid = r.rules.SealedFloor(lot)
		}
		snap.Lots = append(snap.Lots, ls)
	}
	for i := 0; i < r.seq.Seats(); i++ {
		w := r.ledger.Wallet(Seat(i))
		snap.Players = append(snap.Players, PlayerSnapshot{
			Seat:        Seat(i),
			FreeCash:    w.Free(),
			BlockedCash: w.Blocked(),
		})
	}
	return snap
}
