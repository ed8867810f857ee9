package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipo/engine"
)

func sealedRules() engine.RuleSet {
	return engine.RuleSet{
		Mode:          engine.ModeSealed,
		Increment:     5,
		TierFloorUnit: 50,
	}
}

func sealedLots() []engine.LotDef {
	return []engine.LotDef{
		{ID: "seed", BasePrice: 40, Modulus: 5, Tier: 1},
		{ID: "series-a", BasePrice: 100, Modulus: 10, Tier: 2},
	}
}

// TestSealedTierFloor 驗證密封出價的階層門檻：
// 出價必須達到 階層×單位 與底價取大者。
func TestSealedTierFloor(t *testing.T) {
	round, err := engine.NewRound("r1", sealedLots(), newWallets(3, 1000), sealedRules())
	require.NoError(t, err)

	_, err = round.Submit(engine.BidAction(0, "seed", 45))
	assert.Equal(t, engine.CodeBidTooLow, engine.RejectionCode(err))

	mustSubmit(t, round, engine.BidAction(0, "seed", 55))

	// 階層 2 的門檻是 100
	_, err = round.Submit(engine.BidAction(1, "series-a", 90))
	assert.Equal(t, engine.CodeBidTooLow, engine.RejectionCode(err))
	mustSubmit(t, round, engine.BidAction(1, "series-a", 100))
}

// TestSealedBidsAreMasked 驗證競標中標的的出價不對外揭露
func TestSealedBidsAreMasked(t *testing.T) {
	round, err := engine.NewRound("r1", sealedLots(), newWallets(3, 1000), sealedRules())
	require.NoError(t, err)

	events := mustSubmit(t, round, engine.BidAction(0, "seed", 55))
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventBidPlaced, events[0].Kind)
	assert.Zero(t, events[0].Amount)

	snap := round.Snapshot()
	assert.Equal(t, engine.NoSeat, snap.Lots[0].HighestBidder)
	assert.Zero(t, snap.Lots[0].HighestBid)
}

// TestSealedLastBidderMustPurchase 驗證只剩一位行動者時
// 標的不自動結標，須由他執行購買動作。
func TestSealedLastBidderMustPurchase(t *testing.T) {
	wallets := newWallets(3, 1000)
	round, err := engine.NewRound("r1", sealedLots(), wallets, sealedRules())
	require.NoError(t, err)

	mustSubmit(t, round, engine.BidAction(0, "seed", 55))
	mustSubmit(t, round, engine.BidAction(1, "series-a", 100))

	// 玩家 2 棄權後，玩家 0 棄權：兩個標的都只剩玩家 1
	mustSubmit(t, round, engine.PassAction(2))
	events := mustSubmit(t, round, engine.PassAction(0))

	var required []engine.EventKind
	for _, e := range events {
		required = append(required, e.Kind)
	}
	assert.Contains(t, required, engine.EventPurchaseRequired)

	// 購買前標的仍未售出，出價也已鎖定
	status, err := round.Status("series-a")
	require.NoError(t, err)
	assert.Equal(t, engine.LotAuctioned, status)

	// 玩家 1 以自己的出價購買 series-a，以階層門檻購買無出價的 seed
	mustSubmit(t, round, engine.BuyAction(1, "series-a"))
	events = mustSubmit(t, round, engine.BuyAction(1, "seed"))
	assert.Equal(t, engine.EventRoundComplete, lastKind(events))

	result, done := round.Result()
	require.True(t, done)
	require.Len(t, result.SoldLots, 2)
	assert.Equal(t, 1000-100-50, wallets[1].Free())
}

// TestSealedUniversalPassWithdrawsLot 驗證全員棄權且無出價的標的
// 直接撤下，不做底價調降。
func TestSealedUniversalPassWithdrawsLot(t *testing.T) {
	wallets := newWallets(3, 1000)
	round, err := engine.NewRound("r1", sealedLots(), wallets, sealedRules())
	require.NoError(t, err)

	mustSubmit(t, round, engine.PassAction(0))
	mustSubmit(t, round, engine.PassAction(1))
	events := mustSubmit(t, round, engine.PassAction(2))
	assert.Equal(t, engine.EventRoundComplete, lastKind(events))

	result, done := round.Result()
	require.True(t, done)
	assert.Empty(t, result.SoldLots)
	assert.ElementsMatch(t, []string{"seed", "series-a"}, result.UnsoldLots)
	assert.Equal(t, 3000, totalCash(wallets))
}

// TestSealedPassIsPermanent 驗證棄權後不得再對該標的出價
func TestSealedPassIsPermanent(t *testing.T) {
	round, err := engine.NewRound("r1", sealedLots(), newWallets(3, 1000), sealedRules())
	require.NoError(t, err)

	mustSubmit(t, round, engine.BidAction(0, "seed", 55))
	mustSubmit(t, round, engine.BidAction(1, "seed", 60))
	mustSubmit(t, round, engine.PassAction(2))

	// 輪替跳過已無合法動作的玩家 2
	assert.Equal(t, engine.Seat(0), round.Current())

	mustSubmit(t, round, engine.PassAction(0))
	_, err = round.Submit(engine.BidAction(2, "seed", 65))
	assert.Equal(t, engine.CodeWrongTurn, engine.RejectionCode(err))
}

// TestSealedRaiseOwnBid 驗證玩家必須高於自己先前的出價，
// 且舊出價的凍結在新出價時一併更新。
func TestSealedRaiseOwnBid(t *testing.T) {
	wallets := newWallets(2, 200)
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "seed", BasePrice: 40, Modulus: 5, Tier: 1},
	}, wallets, sealedRules())
	require.NoError(t, err)

	mustSubmit(t, round, engine.BidAction(0, "seed", 100))
	_, err = round.Submit(engine.BidAction(1, "seed", 100))
	require.NoError(t, err)

	// 自己的 100 已凍結，但同標的上可重用：150 ≤ 100 + 100
	mustSubmit(t, round, engine.BidAction(0, "seed", 150))
	assert.Equal(t, 50, wallets[0].Free())
	assert.Equal(t, 150, wallets[0].Blocked())

	// 密封出價不與他人比較，但不得低於或等於自己先前的出價
	_, err = round.Submit(engine.BidAction(1, "seed", 100))
	assert.Equal(t, engine.CodeBidTooLow, engine.RejectionCode(err))
	mustSubmit(t, round, engine.BidAction(1, "seed", 155))
}

// TestSealedPurchaseWithFollowUp 驗證密封模式的購買也可觸發後續定價
func TestSealedPurchaseWithFollowUp(t *testing.T) {
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "seed", BasePrice: 40, Modulus: 5, Tier: 1, NeedsFollowUp: true},
	}, newWallets(2, 1000), sealedRules())
	require.NoError(t, err)

	mustSubmit(t, round, engine.BidAction(0, "seed", 50))
	mustSubmit(t, round, engine.PassAction(1))

	events := mustSubmit(t, round, engine.BuyAction(0, "seed"))
	assert.Equal(t, engine.EventFollowUpRequired, lastKind(events))

	events = mustSubmit(t, round, engine.FollowUpAction(0, "seed", 60))
	assert.Equal(t, engine.EventRoundComplete, lastKind(events))
}
