package engine

// ascendingBid 處理英式公開喊價的出價。
// 驗證順序與拒絕分類：
//   - 1. 不是當前玩家 → WrongTurn
//   - 2. 標的不可出價（含另有標的競標中）→ NotBiddable
//   - 3. 低於最低出價 → BidTooLow
//   - 4. 不是步進的整數倍 → BadIncrement
//   - 5. 超出可用資金（同標的舊出價可重用）→ InsufficientFunds
func (r *Round) ascendingBid(seat Seat, lot *Lot, amount int) error {
	if r.phase == phaseFollowUp {
		return reject(CodeWrongTurn, "waiting for seat %d to set a follow-up price", r.followUpSeat)
	}
	if seat != r.seq.Current() {
		return reject(CodeWrongTurn, "seat %d acted but seat %d is up", seat, r.seq.Current())
	}
	if r.phase == phaseOpenLot && lot != r.openLot {
		return reject(CodeNotBiddable, "lot %s is under auction", r.openLot.ID)
	}
	if lot.Status != LotBiddable && lot.Status != LotAuctioned {
		return reject(CodeNotBiddable, "lot %s is %s", lot.ID, lot.Status)
	}
	if amount < lot.MinBid {
		return reject(CodeBidTooLow, "bid %d is below minimum %d", amount, lot.MinBid)
	}
	if amount%lot.Modulus != 0 {
		return reject(CodeBadIncrement, "bid %d is not a multiple of %d", amount, lot.Modulus)
	}
	if !r.ledger.CanAfford(lot.ID, seat, amount) {
		return reject(CodeInsufficientFunds, "bid %d exceeds available cash", amount)
	}

	if err := r.ledger.Place(lot.ID, seat, amount); err != nil {
		return invariant("ledger rejected a validated bid: %v", err)
	}
	lot.Status = LotAuctioned
	lot.HighestBidder = seat
	lot.HighestBid = amount
	lot.MinBid = amount + r.rules.Increment
	r.openLot = lot
	r.phase = phaseOpenLot
	r.seq.ResetPasses()
	r.emit(EventBidPlaced, lot.ID, seat, amount)
	r.seq.AdvanceActiveOn(lot.ID)
	return nil
}

// ascendingPass 處理棄權。
// 競標中：玩家對該標的永久棄權；只剩一位行動者時直接結標給他，
// 價格為目前最高出價，不需要他再行動（規則組合可關閉）。
// 無標的競標中：累計全域棄權計數；全員棄權時第一個未售出標的
// 底價調降，降到零則免費判給優先權玩家並前移優先權。
func (r *Round) ascendingPass(seat Seat) error {
	if r.phase == phaseFollowUp {
		return reject(CodeWrongTurn, "waiting for seat %d to set a follow-up price", r.followUpSeat)
	}
	if seat != r.seq.Current() {
		return reject(CodeWrongTurn, "seat %d acted but seat %d is up", seat, r.seq.Current())
	}

	if r.phase == phaseOpenLot {
		lot := r.openLot
		r.seq.MarkPassed(lot.ID, seat)
		if seat == lot.HighestBidder {
			// 領先者棄權視同撤回出價
			if err := r.ledger.Withdraw(lot.ID, seat); err != nil {
				return invariant("withdraw failed: %v", err)
			}
		}
		r.emit(EventPassed, lot.ID, seat, 0)

		active := r.seq.ActiveSeats(lot.ID)
		if len(active) == 1 && r.rules.AutoResolveSingleBidder {
			return r.resolveSale(lot, active[0], lot.CurrentPrice())
		}
		if len(active) == 0 {
			// 規則組合不自動結標時所有人都可能棄權；
			// 此時標的以目前最高出價判給領先者
			if lot.HighestBidder != NoSeat {
				return r.resolveSale(lot, lot.HighestBidder, lot.HighestBid)
			}
			return invariant("open lot %s has no active bidder and no leader", lot.ID)
		}
		r.seq.AdvanceActiveOn(lot.ID)
		return nil
	}

	// 無標的競標中：全域棄權循環
	passes := r.seq.CountPass()
	r.emit(EventPassed, "", seat, 0)
	r.seq.Advance()
	if passes < r.seq.Seats() {
		return nil
	}

	r.seq.ResetPasses()
	lot := r.reg.FirstUnsold()
	if lot == nil {
		return invariant("all seats passed but no unsold lot remains")
	}
	r.reg.ReduceBasePrice(lot, r.rules.Decrement)
	if lot.BasePrice > 0 {
		r.emit(EventPriceReduced, lot.ID, NoSeat, lot.BasePrice)
		return nil
	}
	// 底價歸零：免費判給優先權玩家
	r.freeAward = true
	return r.resolveSale(lot, r.seq.Priority(), 0)
}

// ascendingBuy 處理以底價直接購買：
// 僅在標的可出價且尚無任何出價時合法，從可用資金全額支付。
func (r *Round) ascendingBuy(seat Seat, lot *Lot) error {
	if r.phase == phaseFollowUp {
		return reject(CodeWrongTurn, "waiting for seat %d to set a follow-up price", r.followUpSeat)
	}
	if seat != r.seq.Current() {
		return reject(CodeWrongTurn, "seat %d acted but seat %d is up", seat, r.seq.Current())
	}
	if r.phase == phaseOpenLot {
		return reject(CodeNotBiddable, "lot %s is under auction", r.openLot.ID)
	}
	if lot.Status != LotBiddable {
		return reject(CodeNotBiddable, "lot %s is %s", lot.ID, lot.Status)
	}
	if r.ledger.Wallet(seat).Free() < lot.BasePrice {
		return reject(CodeInsufficientFunds, "base price %d exceeds free cash", lot.BasePrice)
	}
	return r.resolveSale(lot, seat, lot.BasePrice)
}
