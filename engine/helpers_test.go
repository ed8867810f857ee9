package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ipo/engine"
)

// newWallets 建立 n 個初始資金相同的錢包
func newWallets(n, cash int) []engine.Wallet {
	wallets := make([]engine.Wallet, n)
	for i := range wallets {
		wallets[i] = engine.NewCashWallet(cash)
	}
	return wallets
}

// totalCash 回傳所有玩家可用與凍結資金的總和
func totalCash(wallets []engine.Wallet) int {
	sum := 0
	for _, w := range wallets {
		sum += w.Free() + w.Blocked()
	}
	return sum
}

// mustSubmit 提交動作並要求成功
func mustSubmit(t *testing.T, r *engine.Round, a engine.Action) []engine.Event {
	t.Helper()
	events, err := r.Submit(a)
	require.NoError(t, err, "action %s should succeed", a)
	return events
}

// lastKind 回傳事件序列中最後一個事件的種類
func lastKind(events []engine.Event) engine.EventKind {
	if len(events) == 0 {
		return ""
	}
	return events[len(events)-1].Kind
}
