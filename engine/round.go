package engine

import (
	"fmt"
	"time"
)

// phase 是回合的顯式狀態，取代散落在轉移邏輯裡的空值檢查
type phase int

const (
	// phaseIdle 表示沒有標的在競標中，等待任何合法動作
	phaseIdle phase = iota
	// phaseOpenLot 表示恰有一個標的正在公開競標
	phaseOpenLot
	// phaseFollowUp 表示成交後等待買家完成後續定價，正常輪替暫停
	phaseFollowUp
	// phaseComplete 表示回合結束，RoundResult 已發布
	phaseComplete
	// phaseAborted 表示回合因致命協議錯誤中止
	phaseAborted
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseOpenLot:
		return "open_lot"
	case phaseFollowUp:
		return "awaiting_follow_up"
	case phaseComplete:
		return "complete"
	case phaseAborted:
		return "aborted"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Round 是初始資本化拍賣回合的裁判。
// 嚴格單執行緒、逐動作處理：每個動作完整地 驗證→變更→結算
// 後才接受下一個動作；被拒絕的動作保證不留下任何副作用。
type Round struct {
	id     string
	rules  RuleSet
	reg    *Registry
	ledger *Ledger
	seq    *Sequencer

	phase   phase
	openLot *Lot

	followUpLot  *Lot
	followUpSeat Seat
	pendingSold  SoldLot

	// pendingPurchase 記錄密封出價模式下必須執行購買的玩家
	pendingPurchase map[string]Seat

	sold   []SoldLot
	result *RoundResult

	// freeAward 標記本次結算來自全員棄權後的免費判給
	freeAward bool

	// submitting 防止驗證回呼重入 Submit
	submitting bool
	events     []Event
}

// NewRound 從外部設定建立回合：標的定義、玩家錢包與規則組合。
func NewRound(id string, defs []LotDef, wallets []Wallet, rules RuleSet) (*Round, error) {
	const op = "NewRound"
	if id == "" {
		return nil, fmt.Errorf("[%s] round id cannot be empty", op)
	}
	if len(wallets) < 2 {
		return nil, fmt.Errorf("[%s] need at least 2 players, got %d", op, len(wallets))
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("[%s] invalid rule set, err=%w", op, err)
	}
	reg, err := NewRegistry(defs)
	if err != nil {
		return nil, fmt.Errorf("[%s] fail to build lot registry, err=%w", op, err)
	}
	return &Round{
		id:              id,
		rules:           rules,
		reg:             reg,
		ledger:          NewLedger(wallets),
		seq:             NewSequencer(len(wallets)),
		pendingPurchase: make(map[string]Seat),
	}, nil
}

// ID 回傳回合識別碼
func (r *Round) ID() string { return r.id }

// Rules 回傳回合使用的規則組合
func (r *Round) Rules() RuleSet { return r.rules }

// Current 回傳當前行動玩家
func (r *Round) Current() Seat { return r.seq.Current() }

// Priority 回傳優先權玩家
func (r *Round) Priority() Seat { return r.seq.Priority() }

// Complete 判斷回合是否已結束
func (r *Round) Complete() bool { return r.phase == phaseComplete }

// Result 回傳回合結果；回合尚未結束時第二個回傳值為 false
func (r *Round) Result() (*RoundResult, bool) {
	if r.result == nil {
		return nil, false
	}
	return r.result, true
}

// Status 是查詢單一標的狀態的同步介面，不改變任何狀態
func (r *Round) Status(lotID string) (LotStatus, error) {
	lot, ok := r.reg.Lot(lotID)
	if !ok {
		return 0, fmt.Errorf("unknown lot %q", lotID)
	}
	return lot.Status, nil
}

// Submit 處理一個動作並回傳它產生的事件。
// 回傳 Rejection 時狀態完全未變，呼叫端可修正後重送；
// 回傳 InvariantError 時回合中止，之後一律回傳 ErrRoundAborted。
func (r *Round) Submit(a Action) ([]Event, error) {
	if r.submitting {
		return nil, invariant("re-entrant submit from validation callback")
	}
	r.submitting = true
	defer func() { r.submitting = false }()

	events, err := r.apply(a)
	if err != nil && IsFatal(err) {
		r.phase = phaseAborted
	}
	return events, err
}

func (r *Round) apply(a Action) ([]Event, error) {
	switch r.phase {
	case phaseAborted:
		return nil, ErrRoundAborted
	case phaseComplete:
		return nil, invariant("action submitted after round completion")
	}
	if a.Seat < 0 || int(a.Seat) >= r.seq.Seats() {
		return nil, invariant("unknown seat %d", a.Seat)
	}
	var lot *Lot
	if a.LotID != "" {
		var ok bool
		lot, ok = r.reg.Lot(a.LotID)
		if !ok {
			return nil, invariant("unknown lot %q", a.LotID)
		}
	}

	r.events = r.events[:0]
	var err error
	switch a.Kind {
	case ActBid:
		if lot == nil {
			return nil, invariant("bid action without lot")
		}
		if r.rules.Mode == ModeSealed {
			err = r.sealedBid(a.Seat, lot, a.Amount)
		} else {
			err = r.ascendingBid(a.Seat, lot, a.Amount)
		}
	case ActPass:
		if r.rules.Mode == ModeSealed {
			err = r.sealedPass(a.Seat)
		} else {
			err = r.ascendingPass(a.Seat)
		}
	case ActBuy:
		if lot == nil {
			return nil, invariant("buy action without lot")
		}
		if r.rules.Mode == ModeSealed {
			err = r.sealedBuy(a.Seat, lot)
		} else {
			err = r.ascendingBuy(a.Seat, lot)
		}
	case ActSetFollowUp:
		if lot == nil {
			return nil, invariant("follow-up action without lot")
		}
		err = r.setFollowUpPrice(a.Seat, lot, a.Amount)
	default:
		return nil, invariant("unknown action kind %q", a.Kind)
	}
	if err != nil {
		return nil, err
	}
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out, nil
}

func (r *Round) emit(kind EventKind, lotID string, seat Seat, amount int) {
	r.events = append(r.events, Event{
		Kind:   kind,
		LotID:  lotID,
		Seat:   seat,
		Amount: amount,
		Time:   time.Now(),
	})
}

// resolveSale 把標的判給買家：結清帳本、轉移價金、清除棄權紀錄，
// 再依標的是否需要後續定價決定進入 LotSold 或 LotNeedsFollowUp。
func (r *Round) resolveSale(lot *Lot, buyer Seat, price int) error {
	if err := r.ledger.Settle(lot.ID, buyer, price); err != nil {
		return invariant("settlement failed for lot %s: %v", lot.ID, err)
	}
	lot.HighestBidder = buyer
	lot.HighestBid = price
	r.seq.ClearLot(lot.ID)
	r.seq.ResetPasses()
	if r.openLot == lot {
		r.openLot = nil
	}

	record := SoldLot{LotID: lot.ID, Buyer: buyer, Price: price}
	if lot.NeedsFollowUp {
		lot.Status = LotNeedsFollowUp
		r.phase = phaseFollowUp
		r.followUpLot = lot
		r.followUpSeat = buyer
		r.pendingSold = record
		r.emit(EventFollowUpRequired, lot.ID, buyer, price)
		return nil
	}

	r.phase = phaseIdle
	r.finalizeSale(lot, record)
	r.applyPriorityAfterSale(buyer)
	r.checkComplete()
	return nil
}

// finalizeSale 將成交寫入結果並處理附贈標的
func (r *Round) finalizeSale(lot *Lot, record SoldLot) {
	lot.Status = LotSold
	r.sold = append(r.sold, record)
	r.emit(EventLotSold, lot.ID, record.Buyer, record.Price)
	if lot.SecondaryLotID != "" {
		if sec, ok := r.reg.Lot(lot.SecondaryLotID); ok && sec.Status == LotUnavailable {
			sec.Status = LotSold
			sec.HighestBidder = record.Buyer
			r.sold = append(r.sold, SoldLot{LotID: sec.ID, Buyer: record.Buyer})
			r.emit(EventLotSold, sec.ID, record.Buyer, 0)
		}
	}
}

// applyPriorityAfterSale 依規則組合宣告的策略移動優先權。
// 免費判給優先權玩家時規則固定為優先權前移一位。
func (r *Round) applyPriorityAfterSale(buyer Seat) {
	if r.phase != phaseIdle {
		return
	}
	if r.freeAward {
		r.freeAward = false
		r.seq.AdvancePriority()
		return
	}
	if r.rules.Priority == PriorityPastWinner {
		r.seq.SetPriorityAfter(buyer)
	}
	if r.rules.Mode == ModeAscending {
		r.seq.RestoreToPriority()
	}
}

// setFollowUpPrice 處理買家的後續定價動作（兩種模式共用）。
// 沒有任何標的在等待定價時提交屬於呼叫端協議錯誤，回合中止。
func (r *Round) setFollowUpPrice(seat Seat, lot *Lot, price int) error {
	if r.phase != phaseFollowUp {
		return invariant("follow-up price submitted while no lot awaits one")
	}
	if lot != r.followUpLot {
		return reject(CodeInvalidFollowUp, "lot %s is not awaiting a price", lot.ID)
	}
	if seat != r.followUpSeat {
		return reject(CodeInvalidFollowUp, "only the buyer (seat %d) may set the price", r.followUpSeat)
	}
	if price <= 0 || price%lot.Modulus != 0 {
		return reject(CodeInvalidFollowUp, "price %d is not a valid listing price", price)
	}

	record := r.pendingSold
	record.ListingPrice = price
	r.phase = phaseIdle
	r.followUpLot = nil
	r.followUpSeat = NoSeat
	r.emit(EventFollowUpSet, lot.ID, seat, price)
	r.finalizeSale(lot, record)
	r.applyPriorityAfterSale(record.Buyer)
	if r.rules.Mode == ModeSealed {
		r.advanceSealed()
	}
	r.checkComplete()
	return nil
}

// checkComplete 在每次結算後評估回合是否結束；
// 結束時建立 RoundResult 並恰好發布一次。
func (r *Round) checkComplete() {
	if r.phase != phaseIdle {
		return
	}
	if !r.reg.Settled() || len(r.pendingPurchase) > 0 {
		return
	}
	var unsold []string
	for _, lot := range r.reg.Lots() {
		if lot.Status != LotSold {
			unsold = append(unsold, lot.ID)
		}
	}
	r.result = &RoundResult{
		RoundID:    r.id,
		SoldLots:   r.sold,
		UnsoldLots: unsold,
	}
	r.phase = phaseComplete
	r.events = append(r.events, Event{
		Kind:   EventRoundComplete,
		Seat:   NoSeat,
		Result: r.result,
		Time:   time.Now(),
	})
}
