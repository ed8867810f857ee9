package engine

import "fmt"

// Ledger 是 (標的, 玩家) → 凍結金額 的唯一真實來源。
// 所有凍結與解凍都和觸發它的狀態變更在同一個動作內完成，
// 外部永遠觀察不到中間狀態。
type Ledger struct {
	wallets []Wallet
	blocked map[string][]int
}

// NewLedger 建立帳本，每個座位對應一個錢包
func NewLedger(wallets []Wallet) *Ledger {
	return &Ledger{
		wallets: wallets,
		blocked: make(map[string][]int),
	}
}

// Wallet 回傳座位對應的錢包
func (l *Ledger) Wallet(seat Seat) Wallet {
	return l.wallets[seat]
}

// Amount 回傳玩家在標的上的現有出價金額，無出價時為 0
func (l *Ledger) Amount(lotID string, seat Seat) int {
	row, ok := l.blocked[lotID]
	if !ok {
		return 0
	}
	return row[seat]
}

// CanAfford 判斷玩家是否付得起在此標的上出價 amount：
// 玩家在同一標的上的舊出價視為可重複使用的資金。
func (l *Ledger) CanAfford(lotID string, seat Seat, amount int) bool {
	return amount <= l.wallets[seat].Free()+l.Amount(lotID, seat)
}

// Place 登記玩家對標的的新出價：先解凍舊出價再凍結新金額。
func (l *Ledger) Place(lotID string, seat Seat, amount int) error {
	const op = "Ledger.Place"
	if !l.CanAfford(lotID, seat, amount) {
		return fmt.Errorf("[%s] seat %d cannot afford %d on lot %s", op, seat, amount, lotID)
	}
	row, ok := l.blocked[lotID]
	if !ok {
		row = make([]int, len(l.wallets))
		l.blocked[lotID] = row
	}
	if prev := row[seat]; prev > 0 {
		if err := l.wallets[seat].Unblock(prev); err != nil {
			return fmt.Errorf("[%s] fail to unblock previous bid, err=%w", op, err)
		}
	}
	if err := l.wallets[seat].Block(amount); err != nil {
		return fmt.Errorf("[%s] fail to block new bid, err=%w", op, err)
	}
	row[seat] = amount
	return nil
}

// Withdraw 解凍並移除玩家在標的上的出價
func (l *Ledger) Withdraw(lotID string, seat Seat) error {
	const op = "Ledger.Withdraw"
	row, ok := l.blocked[lotID]
	if !ok || row[seat] == 0 {
		return nil
	}
	if err := l.wallets[seat].Unblock(row[seat]); err != nil {
		return fmt.Errorf("[%s] fail to unblock, err=%w", op, err)
	}
	row[seat] = 0
	return nil
}

// Settle 結算標的：解凍所有玩家在此標的上的出價，
// 再由買家以 price 付款給銀行。買家為 NoSeat 時只做解凍。
func (l *Ledger) Settle(lotID string, buyer Seat, price int) error {
	const op = "Ledger.Settle"
	row := l.blocked[lotID]
	for seat, amount := range row {
		if amount == 0 {
			continue
		}
		if err := l.wallets[seat].Unblock(amount); err != nil {
			return fmt.Errorf("[%s] fail to release seat %d, err=%w", op, seat, err)
		}
		row[seat] = 0
	}
	delete(l.blocked, lotID)
	if buyer == NoSeat || price == 0 {
		return nil
	}
	if err := l.wallets[buyer].Transfer(price); err != nil {
		return fmt.Errorf("[%s] fail to transfer payment, err=%w", op, err)
	}
	return nil
}
