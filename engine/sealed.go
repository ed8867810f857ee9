package engine

// advanceSealed 將行動權移到下一個在任一開放標的上仍有合法動作
// 的玩家：尚未棄權的標的，或待執行的購買。
func (r *Round) advanceSealed() {
	open := r.reg.Biddable()
	if len(open) == 0 && len(r.pendingPurchase) == 0 {
		return
	}
	for i := 0; i < r.seq.Seats(); i++ {
		r.seq.Advance()
		seat := r.seq.Current()
		for _, buyer := range r.pendingPurchase {
			if buyer == seat {
				return
			}
		}
		for _, lot := range open {
			if r.seq.ActiveOn(lot.ID, seat) {
				return
			}
		}
	}
}

// sealedBid 處理密封出價：多個標的同時開放，出價互不公開。
// 出價下限為標的階層對應的資金門檻與底價取大者，
// 且必須高於玩家自己先前的出價。
func (r *Round) sealedBid(seat Seat, lot *Lot, amount int) error {
	if r.phase == phaseFollowUp {
		return reject(CodeWrongTurn, "waiting for seat %d to set a follow-up price", r.followUpSeat)
	}
	if seat != r.seq.Current() {
		return reject(CodeWrongTurn, "seat %d acted but seat %d is up", seat, r.seq.Current())
	}
	if lot.Status != LotBiddable && lot.Status != LotAuctioned {
		return reject(CodeNotBiddable, "lot %s is %s", lot.ID, lot.Status)
	}
	if !r.seq.ActiveOn(lot.ID, seat) {
		return reject(CodeNotBiddable, "seat %d has passed on lot %s", seat, lot.ID)
	}
	if _, pending := r.pendingPurchase[lot.ID]; pending {
		return reject(CodeNotBiddable, "lot %s awaits its purchase step", lot.ID)
	}
	floor := r.rules.SealedFloor(lot)
	if amount < floor {
		return reject(CodeBidTooLow, "bid %d is below tier floor %d", amount, floor)
	}
	if prev := r.ledger.Amount(lot.ID, seat); amount <= prev {
		return reject(CodeBidTooLow, "bid %d does not raise previous bid %d", amount, prev)
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
	if amount > lot.HighestBid {
		lot.HighestBid = amount
		lot.HighestBidder = seat
	}
	r.seq.ResetPasses()
	// 對外事件不揭露密封金額
	r.emit(EventBidPlaced, lot.ID, seat, 0)
	r.advanceSealed()
	return nil
}

// sealedPass 處理密封出價模式的棄權：
// 對所有仍可行動的開放標的永久棄權並撤回已凍結的出價。
// 某標的只剩一位行動者時，他必須另外執行購買動作；
// 所有人都棄權且無任何出價的標的直接撤下，不做底價調降。
func (r *Round) sealedPass(seat Seat) error {
	if r.phase == phaseFollowUp {
		return reject(CodeWrongTurn, "waiting for seat %d to set a follow-up price", r.followUpSeat)
	}
	if seat != r.seq.Current() {
		return reject(CodeWrongTurn, "seat %d acted but seat %d is up", seat, r.seq.Current())
	}

	r.emit(EventPassed, "", seat, 0)
	for _, lot := range r.reg.Biddable() {
		if !r.seq.ActiveOn(lot.ID, seat) {
			continue
		}
		r.seq.MarkPassed(lot.ID, seat)
		if err := r.ledger.Withdraw(lot.ID, seat); err != nil {
			return invariant("withdraw failed: %v", err)
		}
		if lot.HighestBidder == seat {
			r.recomputeSealedLeader(lot)
		}

		active := r.seq.ActiveSeats(lot.ID)
		switch len(active) {
		case 0:
			// 全員棄權且無出價：撤下標的
			delete(r.pendingPurchase, lot.ID)
			if err := r.ledger.Settle(lot.ID, NoSeat, 0); err != nil {
				return invariant("settlement failed for lot %s: %v", lot.ID, err)
			}
			lot.Status = LotUnavailable
			r.seq.ClearLot(lot.ID)
			r.emit(EventLotWithdrawn, lot.ID, NoSeat, 0)
		case 1:
			if _, pending := r.pendingPurchase[lot.ID]; !pending {
				r.pendingPurchase[lot.ID] = active[0]
				r.emit(EventPurchaseRequired, lot.ID, active[0], 0)
			}
		}
	}
	r.advanceSealed()
	r.checkComplete()
	return nil
}

// recomputeSealedLeader 在領先者撤回後重新計算標的的最高出價
func (r *Round) recomputeSealedLeader(lot *Lot) {
	lot.HighestBid = 0
	lot.HighestBidder = NoSeat
	for i := 0; i < r.seq.Seats(); i++ {
		if amount := r.ledger.Amount(lot.ID, Seat(i)); amount > lot.HighestBid {
			lot.HighestBid = amount
			lot.HighestBidder = Seat(i)
		}
	}
}

// sealedBuy 處理密封出價模式的購買步驟：
// 只剩一位行動者的標的不自動結標，由他以自己的出價
// （無出價時為階層門檻）執行購買。
func (r *Round) sealedBuy(seat Seat, lot *Lot) error {
	if r.phase == phaseFollowUp {
		return reject(CodeWrongTurn, "waiting for seat %d to set a follow-up price", r.followUpSeat)
	}
	if seat != r.seq.Current() {
		return reject(CodeWrongTurn, "seat %d acted but seat %d is up", seat, r.seq.Current())
	}
	buyer, pending := r.pendingPurchase[lot.ID]
	if !pending {
		return reject(CodeNotBiddable, "lot %s does not await a purchase", lot.ID)
	}
	if buyer != seat {
		return reject(CodeWrongTurn, "lot %s awaits purchase by seat %d", lot.ID, buyer)
	}

	price := r.ledger.Amount(lot.ID, seat)
	if price == 0 {
		price = r.rules.SealedFloor(lot)
		if r.ledger.Wallet(seat).Free() < price {
			return reject(CodeInsufficientFunds, "floor price %d exceeds free cash", price)
		}
	}
	delete(r.pendingPurchase, lot.ID)
	if err := r.resolveSale(lot, seat, price); err != nil {
		return err
	}
	if r.phase == phaseIdle {
		r.advanceSealed()
		r.checkComplete()
	}
	return nil
}
