package pool

import (
	"bytes"
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpool/pam/internal/denom"
	"github.com/openpool/pam/internal/ledger"
	"github.com/openpool/pam/internal/state"
	"github.com/openpool/pam/internal/types"
)

const (
	testOwner   = "owner"
	testFeeAddr = "feecollector"
	testBot     = "bot"
	testNative  = "inj"
)

// The pool's own address must be real bech32: settlement derives the custody
// contract address from its decoded bytes.
var testPoolAddr = func() string {
	addr, err := bech32.ConvertAndEncode("inj", bytes.Repeat([]byte{0x01}, 20))
	if err != nil {
		panic(err)
	}
	return addr
}()

func lpDenom(n uint64) string {
	return denom.LP(testPoolAddr, n)
}

// stubQuerier serves canned gateway responses. Tests mutate basket between
// calls to simulate the external round rolling over.
type stubQuerier struct {
	basket   types.CurrentAuctionBasket
	checksum []byte
	height   uint64
}

func (s *stubQuerier) CurrentAuctionBasket(context.Context) (*types.CurrentAuctionBasket, error) {
	b := s.basket
	return &b, nil
}

func (s *stubQuerier) CodeChecksum(context.Context, uint64) ([]byte, error) {
	return s.checksum, nil
}

func (s *stubQuerier) LatestHeight(context.Context) (uint64, error) {
	return s.height, nil
}

// passValidator accepts any non-empty address so tests can use readable
// identifiers instead of real bech32 strings.
type passValidator struct{}

func (passValidator) Validate(addr string) error {
	if addr == "" {
		return ledger.ErrEmptyAddress
	}
	return nil
}

func newStubQuerier() *stubQuerier {
	return &stubQuerier{
		basket: types.CurrentAuctionBasket{
			Amount: sdk.NewCoins(
				sdk.NewCoin("atom", sdkmath.NewInt(1000)),
				sdk.NewCoin(testNative, sdkmath.NewInt(500)),
			),
			AuctionRound:       7,
			AuctionClosingTime: 1700000000,
			HighestBidder:      "rival",
			HighestBidAmount:   sdkmath.NewInt(20000),
		},
		checksum: make([]byte, 32),
		height:   12345,
	}
}

func newTestPool(t *testing.T, q *stubQuerier) *Pool {
	t.Helper()
	store, err := state.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	p, err := New(Config{
		Address:      testPoolAddr,
		Bech32Prefix: "inj",
		Store:        store,
		Gateway:      q,
		Validator:    passValidator{},
	})
	require.NoError(t, err)
	return p
}

func defaultInstantiateParams() InstantiateParams {
	return InstantiateParams{
		Owner:                   testOwner,
		NativeDenom:             testNative,
		MinBalance:              sdkmath.NewInt(100),
		RewardsFee:              sdkmath.LegacyNewDecWithPrec(1, 1),  // 0.1
		RewardsFeeAddr:          testFeeAddr,
		MinNextBidIncrementRate: sdkmath.LegacyNewDecWithPrec(25, 4), // 0.0025
		TreasuryChestCodeID:     42,
		MinReturn:               sdkmath.LegacyNewDecWithPrec(5, 2), // 0.05
		WhitelistAddresses:      []string{testBot},
		InitialFunds:            sdk.NewCoin(testNative, sdkmath.NewInt(20000)),
	}
}

func newInstantiatedPool(t *testing.T, q *stubQuerier) *Pool {
	t.Helper()
	p := newTestPool(t, q)
	_, err := p.Instantiate(context.Background(), defaultInstantiateParams())
	require.NoError(t, err)
	return p
}

func joinAmount(t *testing.T, p *Pool, round uint64, amount int64) {
	t.Helper()
	_, err := p.JoinPool(context.Background(), CallContext{Caller: "depositor", Height: 100},
		round, sdk.NewCoin(testNative, sdkmath.NewInt(amount)), nil)
	require.NoError(t, err)
}

func attrValue(res *Result, key string) string {
	for _, a := range res.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func TestInstantiate(t *testing.T) {
	q := newStubQuerier()
	p := newTestPool(t, q)

	res, err := p.Instantiate(context.Background(), defaultInstantiateParams())
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)

	create, ok := res.Messages[0].(ledger.MsgCreateDenom)
	require.True(t, ok)
	assert.Equal(t, "auction.0", create.Subdenom)
	assert.Equal(t, "7", attrValue(res, "new_auction_round"))

	auction, err := p.GetUnsettledAuction()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), auction.AuctionRound)
	assert.Equal(t, uint64(0), auction.LPSubdenom)

	balance, err := p.GetBiddingBalance()
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	locked, err := p.GetFundsLocked()
	require.NoError(t, err)
	assert.False(t, locked)

	whitelist, err := p.GetWhitelistedAddresses()
	require.NoError(t, err)
	assert.Equal(t, []string{testBot}, whitelist)
}

func TestInstantiateTwiceFails(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())
	_, err := p.Instantiate(context.Background(), defaultInstantiateParams())
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInstantiateRejectsBadRates(t *testing.T) {
	q := newStubQuerier()

	for _, rate := range []sdkmath.LegacyDec{
		sdkmath.LegacyNewDec(2),
		sdkmath.LegacyNewDec(-1),
		{},
	} {
		p := newTestPool(t, q)
		params := defaultInstantiateParams()
		params.RewardsFee = rate
		_, err := p.Instantiate(context.Background(), params)
		var rateErr InvalidRateError
		require.ErrorAs(t, err, &rateErr)
	}
}

func TestInstantiateRejectsInsufficientFunding(t *testing.T) {
	p := newTestPool(t, newStubQuerier())
	params := defaultInstantiateParams()
	params.InitialFunds = sdk.NewCoin(testNative, sdkmath.NewInt(99))
	_, err := p.Instantiate(context.Background(), params)
	var fundErr InsufficientFundingError
	require.ErrorAs(t, err, &fundErr)
	assert.Equal(t, "100", fundErr.Required.String())
}

func TestJoinPool(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())

	res, err := p.JoinPool(context.Background(), CallContext{Caller: "depositor", Height: 100},
		7, sdk.NewCoin(testNative, sdkmath.NewInt(30100)), nil)
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)

	mint, ok := res.Messages[0].(ledger.MsgMint)
	require.True(t, ok)
	assert.Equal(t, lpDenom(0), mint.Amount.Denom)
	assert.Equal(t, "30100", mint.Amount.Amount.String())

	send, ok := res.Messages[1].(ledger.MsgSend)
	require.True(t, ok)
	assert.Equal(t, "depositor", send.ToAddress)
	assert.Equal(t, "30100", send.Amount.AmountOf(lpDenom(0)).String())

	balance, err := p.GetBiddingBalance()
	require.NoError(t, err)
	assert.Equal(t, "30100", balance.String())
}

func TestJoinPoolRejectsStaleRound(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())

	_, err := p.JoinPool(context.Background(), CallContext{Caller: "depositor"},
		6, sdk.NewCoin(testNative, sdkmath.NewInt(1000)), nil)
	var roundErr InvalidAuctionRoundError
	require.ErrorAs(t, err, &roundErr)
	assert.Equal(t, uint64(7), roundErr.CurrentAuctionRound)
	assert.Equal(t, uint64(6), roundErr.AuctionRound)
}

func TestJoinPoolRejectsWrongDenom(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())

	_, err := p.JoinPool(context.Background(), CallContext{Caller: "depositor"},
		7, sdk.NewCoin("atom", sdkmath.NewInt(1000)), nil)
	var denomErr PaymentDenomError
	require.ErrorAs(t, err, &denomErr)
	assert.Equal(t, testNative, denomErr.Expected)
}

func TestJoinPoolWithAutoBid(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())

	basketValue := sdkmath.NewInt(100000)
	res, err := p.JoinPool(context.Background(), CallContext{Caller: "depositor", Height: 100},
		7, sdk.NewCoin(testNative, sdkmath.NewInt(30100)), &basketValue)
	require.NoError(t, err)

	// mint, send, bid
	require.Len(t, res.Messages, 3)
	bid, ok := res.Messages[2].(ledger.MsgBid)
	require.True(t, ok)
	assert.Equal(t, "20051", bid.BidAmount.Amount.String())
	assert.Equal(t, "try_bid", attrValue(res, "bid_action"))

	locked, err := p.GetFundsLocked()
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestJoinPoolAutoBidNoOpKeepsJoin(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())

	// Too small to beat the 20051 minimum: the bid is a no-op but the join
	// itself still commits.
	basketValue := sdkmath.NewInt(100000)
	res, err := p.JoinPool(context.Background(), CallContext{Caller: "depositor", Height: 100},
		7, sdk.NewCoin(testNative, sdkmath.NewInt(5000)), &basketValue)
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "did_not_bid", attrValue(res, "bid_action"))
	assert.Equal(t, "minimum_allowed_bid_is_higher_than_bidding_balance", attrValue(res, "reason"))

	balance, err := p.GetBiddingBalance()
	require.NoError(t, err)
	assert.Equal(t, "5000", balance.String())
}

func TestExitPoolRoundTrip(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())
	joinAmount(t, p, 7, 5000)

	res, err := p.ExitPool(context.Background(), CallContext{Caller: "depositor"},
		sdk.NewCoin(lpDenom(0), sdkmath.NewInt(5000)))
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)

	burn, ok := res.Messages[0].(ledger.MsgBurn)
	require.True(t, ok)
	assert.Equal(t, lpDenom(0), burn.Amount.Denom)

	send, ok := res.Messages[1].(ledger.MsgSend)
	require.True(t, ok)
	assert.Equal(t, "5000", send.Amount.AmountOf(testNative).String())

	// Conservation: everything minted has been burned and refunded.
	balance, err := p.GetBiddingBalance()
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestExitPoolRefusedWhileLocked(t *testing.T) {
	q := newStubQuerier()
	p := newInstantiatedPool(t, q)
	joinAmount(t, p, 7, 30100)

	_, err := p.TryBid(context.Background(), CallContext{Caller: testBot}, 7, sdkmath.NewInt(100000))
	require.NoError(t, err)

	_, err = p.ExitPool(context.Background(), CallContext{Caller: "depositor"},
		sdk.NewCoin(lpDenom(0), sdkmath.NewInt(100)))
	require.ErrorIs(t, err, ErrPooledAuctionLocked)
}

func TestExitPoolRejectsOverdraw(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())
	joinAmount(t, p, 7, 1000)

	_, err := p.ExitPool(context.Background(), CallContext{Caller: "depositor"},
		sdk.NewCoin(lpDenom(0), sdkmath.NewInt(1001)))
	require.ErrorIs(t, err, state.ErrInsufficientBiddingBalance)

	// The failed exit must not have touched the balance.
	balance, err := p.GetBiddingBalance()
	require.NoError(t, err)
	assert.Equal(t, "1000", balance.String())
}

func TestExitPoolRejectsWrongDenom(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())
	joinAmount(t, p, 7, 1000)

	_, err := p.ExitPool(context.Background(), CallContext{Caller: "depositor"},
		sdk.NewCoin(testNative, sdkmath.NewInt(100)))
	var denomErr PaymentDenomError
	require.ErrorAs(t, err, &denomErr)
	assert.Equal(t, lpDenom(0), denomErr.Expected)
}

func TestMinimumAllowedBid(t *testing.T) {
	rate := sdkmath.LegacyNewDecWithPrec(25, 4) // 0.0025

	// ceil(20000 * 1.0025) + 1
	assert.Equal(t, "20051", minimumAllowedBid(sdkmath.NewInt(20000), rate).String())
	// ceil(0 * 1.0025) + 1
	assert.Equal(t, "1", minimumAllowedBid(sdkmath.ZeroInt(), rate).String())
	// ceil(999 * 1.0025) = 1002 (rounds 1001.4975 up), + 1
	assert.Equal(t, "1003", minimumAllowedBid(sdkmath.NewInt(999), rate).String())
}

func TestTryBidPlacesBid(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())
	joinAmount(t, p, 7, 30100)

	res, err := p.TryBid(context.Background(), CallContext{Caller: testBot}, 7, sdkmath.NewInt(100000))
	require.NoError(t, err)
	assert.Equal(t, "try_bid", res.Action)
	require.Len(t, res.Messages, 1)

	bid, ok := res.Messages[0].(ledger.MsgBid)
	require.True(t, ok)
	assert.Equal(t, testPoolAddr, bid.Sender)
	assert.Equal(t, uint64(7), bid.Round)
	assert.Equal(t, testNative, bid.BidAmount.Denom)
	assert.Equal(t, "20051", bid.BidAmount.Amount.String())

	locked, err := p.GetFundsLocked()
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestTryBidUnauthorized(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())
	joinAmount(t, p, 7, 30100)

	_, err := p.TryBid(context.Background(), CallContext{Caller: "stranger"}, 7, sdkmath.NewInt(100000))
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestTryBidRoundMismatch(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())
	joinAmount(t, p, 7, 30100)

	_, err := p.TryBid(context.Background(), CallContext{Caller: testBot}, 8, sdkmath.NewInt(100000))
	var roundErr InvalidAuctionRoundError
	require.ErrorAs(t, err, &roundErr)
}

func TestTryBidNeverOutbidsItself(t *testing.T) {
	q := newStubQuerier()
	q.basket.HighestBidder = testPoolAddr
	p := newInstantiatedPool(t, q)
	joinAmount(t, p, 7, 30100)

	res, err := p.TryBid(context.Background(), CallContext{Caller: testBot}, 7, sdkmath.NewInt(100000))
	require.NoError(t, err)
	assert.Equal(t, "did_not_bid", res.Action)
	assert.Equal(t, "contract_is_already_the_highest_bidder", attrValue(res, "reason"))
	assert.Empty(t, res.Messages)

	locked, err := p.GetFundsLocked()
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestTryBidSkipsUnprofitableBasket(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())
	joinAmount(t, p, 7, 30100)

	// floor(21000 * 0.95) = 19950 < 20051
	res, err := p.TryBid(context.Background(), CallContext{Caller: testBot}, 7, sdkmath.NewInt(21000))
	require.NoError(t, err)
	assert.Equal(t, "did_not_bid", res.Action)
	assert.Equal(t, "basket_value_is_not_worth_bidding_for", attrValue(res, "reason"))
}

func TestTryBidAlwaysStrictlyExceedsHighest(t *testing.T) {
	rate := sdkmath.LegacyNewDecWithPrec(25, 4)

	// Whatever the running highest bid, the sizing rule must produce a
	// strictly larger number, including when the increment truncates to zero.
	highest := sdkmath.NewInt(1)
	for i := 0; i < 50; i++ {
		next := minimumAllowedBid(highest, rate)
		require.True(t, next.GT(highest), "bid %s does not beat highest %s", next, highest)
		highest = next
	}
}

func TestUpdateConfig(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())

	newFee := sdkmath.LegacyNewDecWithPrec(2, 1)
	newAddr := "newfeeaddr"
	_, err := p.UpdateConfig(context.Background(), CallContext{Caller: testOwner}, UpdateConfigParams{
		RewardsFee:     &newFee,
		RewardsFeeAddr: &newAddr,
	})
	require.NoError(t, err)

	cfg, err := p.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, newFee, cfg.RewardsFee)
	assert.Equal(t, newAddr, cfg.RewardsFeeAddr)
	// Untouched fields keep their prior values.
	assert.Equal(t, sdkmath.LegacyNewDecWithPrec(5, 2), cfg.MinReturn)
}

func TestUpdateConfigUnauthorized(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())

	newFee := sdkmath.LegacyNewDecWithPrec(2, 1)
	_, err := p.UpdateConfig(context.Background(), CallContext{Caller: testBot}, UpdateConfigParams{
		RewardsFee: &newFee,
	})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateConfigRejectsBadRate(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())

	badFee := sdkmath.LegacyNewDec(3)
	_, err := p.UpdateConfig(context.Background(), CallContext{Caller: testOwner}, UpdateConfigParams{
		RewardsFee: &badFee,
	})
	var rateErr InvalidRateError
	require.ErrorAs(t, err, &rateErr)

	// The rejected update must not have leaked through.
	cfg, err := p.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, sdkmath.LegacyNewDecWithPrec(1, 1), cfg.RewardsFee)
}

func TestUpdateWhitelist(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())
	ctx := context.Background()

	_, err := p.UpdateWhitelistedAddresses(ctx, CallContext{Caller: testOwner}, nil, []string{"bot2"})
	require.NoError(t, err)

	// Adding an address that is already present fails the whole call.
	_, err = p.UpdateWhitelistedAddresses(ctx, CallContext{Caller: testOwner}, nil, []string{"bot2"})
	var dupErr AddressAlreadyWhitelistedError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "bot2", dupErr.Address)

	_, err = p.UpdateWhitelistedAddresses(ctx, CallContext{Caller: testOwner}, []string{"bot2"}, nil)
	require.NoError(t, err)

	// Removing it again fails: it is gone.
	_, err = p.UpdateWhitelistedAddresses(ctx, CallContext{Caller: testOwner}, []string{"bot2"}, nil)
	var absentErr AddressNotWhitelistedError
	require.ErrorAs(t, err, &absentErr)

	whitelist, err := p.GetWhitelistedAddresses()
	require.NoError(t, err)
	assert.Equal(t, []string{testBot}, whitelist)
}

func TestUpdateWhitelistAddThenRemoveSameAddress(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())

	// Adds run before removes, so an address in both lists ends up absent.
	_, err := p.UpdateWhitelistedAddresses(context.Background(), CallContext{Caller: testOwner},
		[]string{"bot2"}, []string{"bot2"})
	require.NoError(t, err)

	whitelist, err := p.GetWhitelistedAddresses()
	require.NoError(t, err)
	assert.NotContains(t, whitelist, "bot2")
}

func TestUpdateOwnershipTwoStep(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())
	ctx := context.Background()

	// Accepting with no transfer pending is refused.
	_, err := p.UpdateOwnership(ctx, CallContext{Caller: "newowner"},
		OwnershipUpdate{Action: OwnershipAccept})
	require.ErrorIs(t, err, ErrNoPendingOwner)

	_, err = p.UpdateOwnership(ctx, CallContext{Caller: testOwner},
		OwnershipUpdate{Action: OwnershipTransfer, NewOwner: "newowner"})
	require.NoError(t, err)

	// The proposal alone changes nothing about who is in charge.
	ownership, err := p.GetOwnership()
	require.NoError(t, err)
	assert.Equal(t, testOwner, ownership.Owner)
	assert.Equal(t, "newowner", ownership.PendingOwner)

	_, err = p.UpdateOwnership(ctx, CallContext{Caller: "impostor"},
		OwnershipUpdate{Action: OwnershipAccept})
	require.ErrorIs(t, err, ErrNotPendingOwner)

	_, err = p.UpdateOwnership(ctx, CallContext{Caller: "newowner"},
		OwnershipUpdate{Action: OwnershipAccept})
	require.NoError(t, err)

	ownership, err = p.GetOwnership()
	require.NoError(t, err)
	assert.Equal(t, "newowner", ownership.Owner)
	assert.Empty(t, ownership.PendingOwner)
}

func TestUpdateOwnershipRenounce(t *testing.T) {
	p := newInstantiatedPool(t, newStubQuerier())

	_, err := p.UpdateOwnership(context.Background(), CallContext{Caller: testOwner},
		OwnershipUpdate{Action: OwnershipRenounce})
	require.NoError(t, err)

	ownership, err := p.GetOwnership()
	require.NoError(t, err)
	assert.Empty(t, ownership.Owner)

	// Nobody can pass the owner gate anymore.
	newFee := sdkmath.LegacyNewDecWithPrec(2, 1)
	_, err = p.UpdateConfig(context.Background(), CallContext{Caller: testOwner},
		UpdateConfigParams{RewardsFee: &newFee})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSettleAuctionValidation(t *testing.T) {
	q := newStubQuerier()
	p := newInstantiatedPool(t, q)
	ctx := context.Background()

	_, err := p.SettleAuction(ctx, CallContext{Caller: testBot}, 7, "", sdkmath.NewInt(1))
	require.ErrorIs(t, err, ErrMissingAuctionWinner)

	_, err = p.SettleAuction(ctx, CallContext{Caller: testBot}, 7, "rival", sdkmath.Int{})
	require.ErrorIs(t, err, ErrMissingAuctionWinningBid)

	// Round still live externally.
	_, err = p.SettleAuction(ctx, CallContext{Caller: testBot}, 7, "rival", sdkmath.NewInt(20051))
	require.ErrorIs(t, err, ErrAuctionRoundHasNotFinished)

	q.basket.AuctionRound = 8
	_, err = p.SettleAuction(ctx, CallContext{Caller: "stranger"}, 7, "rival", sdkmath.NewInt(20051))
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = p.SettleAuction(ctx, CallContext{Caller: testBot}, 6, "rival", sdkmath.NewInt(20051))
	var roundErr InvalidAuctionRoundError
	require.ErrorAs(t, err, &roundErr)
}

func TestSettleAuctionLost(t *testing.T) {
	q := newStubQuerier()
	p := newInstantiatedPool(t, q)
	ctx := context.Background()
	joinAmount(t, p, 7, 30100)

	_, err := p.TryBid(ctx, CallContext{Caller: testBot}, 7, sdkmath.NewInt(100000))
	require.NoError(t, err)

	q.basket.AuctionRound = 8
	q.basket.HighestBidder = ""
	q.basket.HighestBidAmount = sdkmath.ZeroInt()

	res, err := p.SettleAuction(ctx, CallContext{Caller: testBot, Height: 200},
		7, "rival", sdkmath.NewInt(25000))
	require.NoError(t, err)
	assert.Empty(t, res.Messages)
	assert.Equal(t, "8", attrValue(res, "new_auction_round"))

	// The lock clears, the balance survives, and the LP denom does not rotate.
	locked, err := p.GetFundsLocked()
	require.NoError(t, err)
	assert.False(t, locked)

	balance, err := p.GetBiddingBalance()
	require.NoError(t, err)
	assert.Equal(t, "30100", balance.String())

	auction, err := p.GetUnsettledAuction()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), auction.AuctionRound)
	assert.Equal(t, uint64(0), auction.LPSubdenom)

	// Old shares exit 1:1 against the untouched balance.
	_, err = p.ExitPool(ctx, CallContext{Caller: "depositor"},
		sdk.NewCoin(lpDenom(0), sdkmath.NewInt(30100)))
	require.NoError(t, err)
}

func TestSettleAuctionWon(t *testing.T) {
	q := newStubQuerier()
	p := newInstantiatedPool(t, q)
	ctx := context.Background()
	joinAmount(t, p, 7, 30100)

	_, err := p.TryBid(ctx, CallContext{Caller: testBot}, 7, sdkmath.NewInt(100000))
	require.NoError(t, err)

	q.basket.AuctionRound = 8
	q.basket.Amount = sdk.NewCoins(sdk.NewCoin("osmo", sdkmath.NewInt(777)))

	res, err := p.SettleAuction(ctx, CallContext{Caller: testBot, Height: 200},
		7, testPoolAddr, sdkmath.NewInt(20051))
	require.NoError(t, err)
	require.Len(t, res.Messages, 4)

	// Fee split on the won basket (atom 1000, inj 500) at 10%.
	feeSend, ok := res.Messages[0].(ledger.MsgSend)
	require.True(t, ok)
	assert.Equal(t, testFeeAddr, feeSend.ToAddress)
	assert.Equal(t, "100", feeSend.Amount.AmountOf("atom").String())
	assert.Equal(t, "50", feeSend.Amount.AmountOf(testNative).String())

	// Chest funds carry the net basket plus the unspent balance: atom 900,
	// inj 450 + (30100 - 20051).
	inst, ok := res.Messages[1].(ledger.MsgInstantiateContract)
	require.True(t, ok)
	assert.Equal(t, uint64(42), inst.CodeID)
	assert.Equal(t, "900", inst.Funds.AmountOf("atom").String())
	assert.Equal(t, "10499", inst.Funds.AmountOf(testNative).String())

	// Per-denom conservation: fee + net == basket amount.
	assert.Equal(t, "1000", feeSend.Amount.AmountOf("atom").Add(inst.Funds.AmountOf("atom")).String())

	changeAdmin, ok := res.Messages[2].(ledger.MsgChangeAdmin)
	require.True(t, ok)
	assert.Equal(t, lpDenom(0), changeAdmin.Denom)
	assert.Equal(t, attrValue(res, "treasure_chest_address"), changeAdmin.NewAdmin)

	create, ok := res.Messages[3].(ledger.MsgCreateDenom)
	require.True(t, ok)
	assert.Equal(t, "auction.1", create.Subdenom)

	// Stake fully consumed, lock cleared, denom rotated onto the new round.
	balance, err := p.GetBiddingBalance()
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	locked, err := p.GetFundsLocked()
	require.NoError(t, err)
	assert.False(t, locked)

	auction, err := p.GetUnsettledAuction()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), auction.AuctionRound)
	assert.Equal(t, uint64(1), auction.LPSubdenom)
	assert.Equal(t, "777", auction.Basket.AmountOf("osmo").String())

	chests, err := p.GetTreasureChestContracts(nil, 0)
	require.NoError(t, err)
	require.Len(t, chests, 1)
	assert.Equal(t, uint64(7), chests[0].AuctionRound)
	assert.Equal(t, changeAdmin.NewAdmin, chests[0].Address)
}

func TestSettleAuctionWonRejectsOverdrawnBid(t *testing.T) {
	q := newStubQuerier()
	p := newInstantiatedPool(t, q)
	ctx := context.Background()
	joinAmount(t, p, 7, 10000)

	q.basket.AuctionRound = 8

	// A reported winning bid above the staked balance is inconsistent and
	// must abort the settlement wholesale.
	_, err := p.SettleAuction(ctx, CallContext{Caller: testBot}, 7, testPoolAddr, sdkmath.NewInt(20051))
	require.ErrorIs(t, err, state.ErrInsufficientBiddingBalance)

	// Nothing committed: round and lock state are untouched.
	auction, err := p.GetUnsettledAuction()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), auction.AuctionRound)

	balance, err := p.GetBiddingBalance()
	require.NoError(t, err)
	assert.Equal(t, "10000", balance.String())
}

func TestSettleAuctionWonEmptyBasket(t *testing.T) {
	q := newStubQuerier()
	q.basket.Amount = sdk.NewCoins()
	p := newInstantiatedPool(t, q)
	ctx := context.Background()
	joinAmount(t, p, 7, 30100)

	q.basket.AuctionRound = 8

	_, err := p.SettleAuction(ctx, CallContext{Caller: testBot}, 7, testPoolAddr, sdkmath.NewInt(20051))
	require.ErrorIs(t, err, ErrEmptyBasketRewards)
}

func TestFullRoundLifecycle(t *testing.T) {
	q := newStubQuerier()
	p := newInstantiatedPool(t, q)
	ctx := context.Background()

	// Round 7: deposit, bid, win.
	joinAmount(t, p, 7, 30100)
	_, err := p.TryBid(ctx, CallContext{Caller: testBot}, 7, sdkmath.NewInt(100000))
	require.NoError(t, err)

	q.basket.AuctionRound = 8
	q.basket.HighestBidder = "rival"
	q.basket.HighestBidAmount = sdkmath.NewInt(500)
	_, err = p.SettleAuction(ctx, CallContext{Caller: testBot, Height: 300},
		7, testPoolAddr, sdkmath.NewInt(20051))
	require.NoError(t, err)

	// Round 8: fresh deposits mint the rotated denom.
	res, err := p.JoinPool(ctx, CallContext{Caller: "depositor2", Height: 301},
		8, sdk.NewCoin(testNative, sdkmath.NewInt(2000)), nil)
	require.NoError(t, err)
	mint := res.Messages[0].(ledger.MsgMint)
	assert.Equal(t, lpDenom(1), mint.Amount.Denom)

	_, err = p.TryBid(ctx, CallContext{Caller: testBot}, 8, sdkmath.NewInt(100000))
	require.NoError(t, err)

	// Round 8 lost: balance and subdenom survive into round 9.
	q.basket.AuctionRound = 9
	_, err = p.SettleAuction(ctx, CallContext{Caller: testBot, Height: 400},
		8, "rival", sdkmath.NewInt(999))
	require.NoError(t, err)

	auction, err := p.GetUnsettledAuction()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), auction.AuctionRound)
	assert.Equal(t, uint64(1), auction.LPSubdenom)

	balance, err := p.GetBiddingBalance()
	require.NoError(t, err)
	assert.Equal(t, "2000", balance.String())
}

func TestQueriesOnEmptyStore(t *testing.T) {
	p := newTestPool(t, newStubQuerier())

	_, err := p.GetConfig()
	require.ErrorIs(t, err, state.ErrNotInitialized)

	locked, err := p.GetFundsLocked()
	require.NoError(t, err)
	assert.False(t, locked)
}
