package engine

import "fmt"

// Wallet 是引擎操作玩家資金的唯一途徑。
// 引擎只呼叫凍結、解凍與轉帳，不直接讀寫資金的內部表示。
type Wallet interface {
	// Free 回傳可用（未凍結）資金
	Free() int
	// Blocked 回傳已凍結資金總額
	Blocked() int
	// Block 凍結 amount 的可用資金
	Block(amount int) error
	// Unblock 解凍 amount 的已凍結資金
	Unblock(amount int) error
	// Transfer 從可用資金支付 amount 給銀行
	Transfer(amount int) error
}

// CashWallet 是 Wallet 的記憶體內實作，
// 服務端用它持有每個座位的資金狀態。
type CashWallet struct {
	free    int
	blocked int
}

// NewCashWallet 以初始資金建立錢包
func NewCashWallet(initial int) *CashWallet {
	return &CashWallet{free: initial}
}

func (w *CashWallet) Free() int    { return w.free }
func (w *CashWallet) Blocked() int { return w.blocked }

func (w *CashWallet) Block(amount int) error {
	if amount < 0 {
		return fmt.Errorf("block negative amount %d", amount)
	}
	if amount > w.free {
		return fmt.Errorf("block %d exceeds free cash %d", amount, w.free)
	}
	w.free -= amount
	w.blocked += amount
	return nil
}

func (w *CashWallet) Unblock(amount int) error {
	if amount < 0 {
		return fmt.Errorf("unblock negative amount %d", amount)
	}
	if amount > w.blocked {
		return fmt.Errorf("unblock %d exceeds blocked cash %d", amount, w.blocked)
	}
	w.blocked -= amount
	w.free += amount
	return nil
}

func (w *CashWallet) Transfer(amount int) error {
	if amount < 0 {
		return fmt.Errorf("transfer negative amount %d", amount)
	}
	if amount > w.free {
		return fmt.Errorf("transfer %d exceeds free cash %d", amount, w.free)
	}
	w.free -= amount
	return nil
}
