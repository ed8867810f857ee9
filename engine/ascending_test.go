package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipo/engine"
)

func ascendingRules() engine.RuleSet {
	return engine.RuleSet{
		Mode:                    engine.ModeAscending,
		Increment:               5,
		Decrement:               10,
		AutoResolveSingleBidder: true,
	}
}

// TestAscendingBiddingWar 重現規格情境：4 位玩家，底價 100、步進 5；
// P1 出 100、P2 出 105、P3 棄權、P4 棄權、P1 棄權 → P2 以 105 得標。
func TestAscendingBiddingWar(t *testing.T) {
	wallets := newWallets(4, 1000)
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "alpha", BasePrice: 100, Modulus: 5},
	}, wallets, ascendingRules())
	require.NoError(t, err)

	mustSubmit(t, round, engine.BidAction(0, "alpha", 100))
	assert.Equal(t, engine.Seat(1), round.Current())

	mustSubmit(t, round, engine.BidAction(1, "alpha", 105))
	mustSubmit(t, round, engine.PassAction(2))
	mustSubmit(t, round, engine.PassAction(3))

	// P1 棄權後 P2 是唯一行動者，直接以最高出價結標
	events := mustSubmit(t, round, engine.PassAction(0))
	assert.Equal(t, engine.EventRoundComplete, lastKind(events))

	status, err := round.Status("alpha")
	require.NoError(t, err)
	assert.Equal(t, engine.LotSold, status)

	result, done := round.Result()
	require.True(t, done)
	require.Len(t, result.SoldLots, 1)
	assert.Equal(t, engine.Seat(1), result.SoldLots[0].Buyer)
	assert.Equal(t, 105, result.SoldLots[0].Price)

	// 買家付款，其他人的凍結資金全數釋放
	assert.Equal(t, 895, wallets[1].Free())
	assert.Equal(t, 0, wallets[1].Blocked())
	assert.Equal(t, 1000, wallets[0].Free())
	assert.Equal(t, 4000-105, totalCash(wallets))
}

// TestAscendingUniversalPass 重現規格情境：3 位玩家全員棄權且無出價
// → 第一個未售出標的底價由 100 降到 90，優先權不變。
func TestAscendingUniversalPass(t *testing.T) {
	wallets := newWallets(3, 500)
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "alpha", BasePrice: 100, Modulus: 5},
	}, wallets, ascendingRules())
	require.NoError(t, err)

	mustSubmit(t, round, engine.PassAction(0))
	mustSubmit(t, round, engine.PassAction(1))
	events := mustSubmit(t, round, engine.PassAction(2))
	assert.Equal(t, engine.EventPriceReduced, lastKind(events))

	snap := round.Snapshot()
	assert.Equal(t, 90, snap.Lots[0].BasePrice)
	assert.Equal(t, 90, snap.Lots[0].MinBid)
	assert.Equal(t, engine.Seat(0), round.Priority())
	assert.Equal(t, engine.Seat(0), round.Current())
}

// TestAscendingFreeAward 驗證底價歸零時標的免費判給優先權玩家，
// 且優先權前移一位。
func TestAscendingFreeAward(t *testing.T) {
	wallets := newWallets(2, 500)
	rules := ascendingRules()
	rules.Decrement = 50
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "alpha", BasePrice: 100, Modulus: 5},
		{ID: "beta", BasePrice: 100, Modulus: 5},
	}, wallets, rules)
	require.NoError(t, err)

	// 兩輪全員棄權：100 → 50 → 0
	for i := 0; i < 2; i++ {
		mustSubmit(t, round, engine.PassAction(0))
		mustSubmit(t, round, engine.PassAction(1))
	}

	status, err := round.Status("alpha")
	require.NoError(t, err)
	assert.Equal(t, engine.LotSold, status)

	snap := round.Snapshot()
	assert.Equal(t, engine.Seat(0), snap.Lots[0].HighestBidder)
	assert.Equal(t, engine.Seat(1), round.Priority())
	assert.Equal(t, engine.Seat(1), round.Current())
	assert.Equal(t, 500, wallets[0].Free())
}

// TestAscendingBuyAtBasePrice 驗證直接購買：無出價時以底價成交
func TestAscendingBuyAtBasePrice(t *testing.T) {
	wallets := newWallets(3, 300)
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "alpha", BasePrice: 100, Modulus: 5},
		{ID: "beta", BasePrice: 200, Modulus: 5},
	}, wallets, ascendingRules())
	require.NoError(t, err)

	events := mustSubmit(t, round, engine.BuyAction(0, "alpha"))
	assert.Equal(t, engine.EventLotSold, lastKind(events))
	assert.Equal(t, 200, wallets[0].Free())

	// 已有出價的標的不可直接購買
	mustSubmit(t, round, engine.BidAction(0, "beta", 200))
	_, err = round.Submit(engine.BuyAction(1, "beta"))
	assert.Equal(t, engine.CodeNotBiddable, engine.RejectionCode(err))
}

// TestAscendingRejectionTaxonomy 逐一驗證拒絕分類，
// 並確認被拒絕的動作不留下任何副作用。
func TestAscendingRejectionTaxonomy(t *testing.T) {
	wallets := newWallets(3, 200)
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "alpha", BasePrice: 100, Modulus: 5},
	}, wallets, ascendingRules())
	require.NoError(t, err)

	cases := []struct {
		name   string
		action engine.Action
		code   engine.Code
	}{
		{"wrong turn", engine.BidAction(1, "alpha", 100), engine.CodeWrongTurn},
		{"bid too low", engine.BidAction(0, "alpha", 95), engine.CodeBidTooLow},
		{"bad increment", engine.BidAction(0, "alpha", 101), engine.CodeBadIncrement},
		{"insufficient funds", engine.BidAction(0, "alpha", 205), engine.CodeInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := round.Snapshot()
			_, err := round.Submit(tc.action)
			assert.Equal(t, tc.code, engine.RejectionCode(err))

			// 等冪拒絕：重送同樣的動作得到同樣的結果，狀態不變
			_, err = round.Submit(tc.action)
			assert.Equal(t, tc.code, engine.RejectionCode(err))
			assert.Equal(t, before, round.Snapshot())
		})
	}
}

// TestAscendingMonotonicMinBid 驗證最低出價在競標期間單調不減
func TestAscendingMonotonicMinBid(t *testing.T) {
	wallets := newWallets(3, 10000)
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "alpha", BasePrice: 100, Modulus: 5},
	}, wallets, ascendingRules())
	require.NoError(t, err)

	prev := 0
	bids := []int{100, 110, 125, 130, 200, 205}
	for i, amount := range bids {
		mustSubmit(t, round, engine.BidAction(engine.Seat(i%3), "alpha", amount))
		snap := round.Snapshot()
		assert.GreaterOrEqual(t, snap.Lots[0].MinBid, prev)
		prev = snap.Lots[0].MinBid
	}
}

// TestAscendingFollowUp 重現規格情境：需要後續定價的標的成交後
// 進入待定價狀態；非買家的定價被拒絕；買家定價後才評估回合完成。
func TestAscendingFollowUp(t *testing.T) {
	wallets := newWallets(3, 1000)
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "alpha", BasePrice: 100, Modulus: 5, NeedsFollowUp: true},
	}, wallets, ascendingRules())
	require.NoError(t, err)

	mustSubmit(t, round, engine.BidAction(0, "alpha", 120))
	mustSubmit(t, round, engine.PassAction(1))
	events := mustSubmit(t, round, engine.PassAction(2))
	assert.Equal(t, engine.EventFollowUpRequired, lastKind(events))

	status, err := round.Status("alpha")
	require.NoError(t, err)
	assert.Equal(t, engine.LotNeedsFollowUp, status)
	_, done := round.Result()
	assert.False(t, done)

	// 非買家的定價被拒絕，狀態不變
	_, err = round.Submit(engine.FollowUpAction(1, "alpha", 100))
	assert.Equal(t, engine.CodeInvalidFollowUp, engine.RejectionCode(err))

	// 買家定價後標的售出，回合完成
	events = mustSubmit(t, round, engine.FollowUpAction(0, "alpha", 100))
	assert.Equal(t, engine.EventRoundComplete, lastKind(events))

	result, done := round.Result()
	require.True(t, done)
	require.Len(t, result.SoldLots, 1)
	assert.Equal(t, 120, result.SoldLots[0].Price)
	assert.Equal(t, 100, result.SoldLots[0].ListingPrice)
	assert.Equal(t, 880, wallets[0].Free())
}

// TestAscendingFollowUpPreemptsTurnOrder 驗證待定價期間
// 其他玩家的一般動作都被拒絕
func TestAscendingFollowUpPreemptsTurnOrder(t *testing.T) {
	wallets := newWallets(3, 1000)
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "alpha", BasePrice: 100, Modulus: 5, NeedsFollowUp: true},
		{ID: "beta", BasePrice: 50, Modulus: 5},
	}, wallets, ascendingRules())
	require.NoError(t, err)

	mustSubmit(t, round, engine.BuyAction(0, "alpha"))

	_, err = round.Submit(engine.BidAction(1, "beta", 50))
	assert.Equal(t, engine.CodeWrongTurn, engine.RejectionCode(err))
	_, err = round.Submit(engine.PassAction(1))
	assert.Equal(t, engine.CodeWrongTurn, engine.RejectionCode(err))

	mustSubmit(t, round, engine.FollowUpAction(0, "alpha", 50))
}

// TestAscendingSecondaryLot 驗證附贈標的跟著主標的一起判給買家
func TestAscendingSecondaryLot(t *testing.T) {
	wallets := newWallets(2, 1000)
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "alpha", BasePrice: 200, Modulus: 5, SecondaryLotID: "alpha-share"},
		{ID: "alpha-share", BasePrice: 0, Modulus: 5, Secondary: true},
	}, wallets, ascendingRules())
	require.NoError(t, err)

	events := mustSubmit(t, round, engine.BuyAction(0, "alpha"))
	assert.Equal(t, engine.EventRoundComplete, lastKind(events))

	result, done := round.Result()
	require.True(t, done)
	require.Len(t, result.SoldLots, 2)
	assert.Equal(t, "alpha-share", result.SoldLots[1].LotID)
	assert.Equal(t, engine.Seat(0), result.SoldLots[1].Buyer)
	assert.Equal(t, 0, result.SoldLots[1].Price)
}

// TestAscendingPriorityPastWinner 驗證售出後優先權依策略移到買家下一位
func TestAscendingPriorityPastWinner(t *testing.T) {
	wallets := newWallets(3, 1000)
	rules := ascendingRules()
	rules.Priority = engine.PriorityPastWinner
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "alpha", BasePrice: 100, Modulus: 5},
		{ID: "beta", BasePrice: 100, Modulus: 5},
	}, wallets, rules)
	require.NoError(t, err)

	mustSubmit(t, round, engine.BuyAction(0, "alpha"))
	assert.Equal(t, engine.Seat(1), round.Priority())
	assert.Equal(t, engine.Seat(1), round.Current())
}

// TestAscendingCashBlocking 驗證凍結資金不可挪用於其他標的
func TestAscendingCashBlocking(t *testing.T) {
	wallets := newWallets(2, 150)
	round, err := engine.NewRound("r1", []engine.LotDef{
		{ID: "alpha", BasePrice: 100, Modulus: 5},
		{ID: "beta", BasePrice: 100, Modulus: 5},
	}, wallets, ascendingRules())
	require.NoError(t, err)

	mustSubmit(t, round, engine.BidAction(0, "alpha", 100))
	assert.Equal(t, 50, wallets[0].Free())
	assert.Equal(t, 100, wallets[0].Blocked())

	// 玩家 1 出更高價後，輪回玩家 0：同標的上舊出價可重用
	mustSubmit(t, round, engine.BidAction(1, "alpha", 105))
	mustSubmit(t, round, engine.BidAction(0, "alpha", 110))
	assert.Equal(t, 40, wallets[0].Free())
	assert.Equal(t, 110, wallets[0].Blocked())
}
