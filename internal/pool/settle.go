package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openpool/pam/internal/denom"
	"github.com/openpool/pam/internal/ledger"
	"github.com/openpool/pam/internal/state"
	"github.com/openpool/pam/internal/types"
)

// chestInstantiate is the custody contract's instantiation payload. The
// chest redeems the settled round's LP denom pro rata against the funds it
// is instantiated with.
type chestInstantiate struct {
	Denom  string `json:"denom"`
	Owner  string `json:"owner"`
	Notes  string `json:"notes"`
	BurnIt bool   `json:"burn_it"`
}

// SettleAuction closes the tracked round and opens the next one. The winner
// and winning bid are reported by a whitelisted caller and trusted: the
// external auction module exposes no per-round historical query, so the
// whitelist is the sole defense on these inputs.
func (p *Pool) SettleAuction(ctx context.Context, call CallContext, auctionRound uint64, auctionWinner string, auctionWinningBid sdkmath.Int) (*Result, error) {
	if auctionWinner == "" {
		return nil, ErrMissingAuctionWinner
	}
	if auctionWinningBid.IsNil() {
		return nil, ErrMissingAuctionWinningBid
	}
	if err := p.validator.Validate(auctionWinner); err != nil {
		return nil, err
	}

	current, err := p.gateway.CurrentAuctionBasket(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Action: "settle_auction"}
	err = p.store.Update(func(tx *state.Txn) error {
		whitelisted, err := tx.IsWhitelisted(call.Caller)
		if err != nil {
			return err
		}
		if !whitelisted {
			return ErrUnauthorized
		}

		unsettled, err := tx.UnsettledAuction()
		if err != nil {
			return err
		}
		if auctionRound != unsettled.AuctionRound {
			return InvalidAuctionRoundError{
				CurrentAuctionRound: unsettled.AuctionRound,
				AuctionRound:        auctionRound,
			}
		}

		// The external round boundary is driven by chain time, not by this
		// call: settling is only legal once the module itself moved on.
		if current.AuctionRound == unsettled.AuctionRound {
			return ErrAuctionRoundHasNotFinished
		}

		if err := tx.SetFundsLocked(false); err != nil {
			return err
		}

		if auctionWinner == p.address {
			return p.settleWon(ctx, tx, call, res, unsettled, current, auctionWinningBid)
		}
		return p.settleLost(tx, res, unsettled, current)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Uint64("settled_auction_round", auctionRound).
		Uint64("new_auction_round", current.AuctionRound).
		Str("auction_winner", auctionWinner).
		Msg("Auction settled")
	return res, nil
}

// settleWon splits the won basket into fees and a distributable share,
// provisions the custody contract, rotates the LP subdenom, and opens the
// next round.
func (p *Pool) settleWon(ctx context.Context, tx *state.Txn, call CallContext, res *Result,
	unsettled types.Auction, current *types.CurrentAuctionBasket, winningBid sdkmath.Int) error {

	cfg, err := tx.Config()
	if err != nil {
		return err
	}

	if unsettled.LPSubdenom == math.MaxUint64 {
		return ErrSubdenomOverflow
	}
	newSubdenom := unsettled.LPSubdenom + 1

	// An underflow here means the reported winning bid exceeds what the pool
	// ever staked: the report is inconsistent and the settlement is aborted.
	remaining, err := tx.DebitBiddingBalance(winningBid)
	if err != nil {
		return fmt.Errorf("winning bid exceeds bidding balance: %w", err)
	}

	chestFunds := sdk.NewCoins()
	if remaining.IsPositive() {
		// Unused balance folds into the distributable basket, untaxed.
		chestFunds = chestFunds.Add(sdk.NewCoin(cfg.NativeDenom, remaining))
	}

	if unsettled.Basket.IsZero() {
		return ErrEmptyBasketRewards
	}

	fees := sdk.NewCoins()
	for _, coin := range unsettled.Basket {
		fee := sdkmath.LegacyNewDecFromInt(coin.Amount).Mul(cfg.RewardsFee).TruncateInt()
		if fee.IsPositive() {
			fees = fees.Add(sdk.NewCoin(coin.Denom, fee))
		}
		net := coin.Amount.Sub(fee)
		if net.IsPositive() {
			chestFunds = chestFunds.Add(sdk.NewCoin(coin.Denom, net))
		}
	}

	// The round's stake is fully consumed; every remaining claim now lives
	// in the chest.
	if err := tx.SetBiddingBalance(sdkmath.ZeroInt()); err != nil {
		return err
	}

	if !fees.IsZero() {
		res.addMessage(ledger.MsgSend{
			FromAddress: p.address,
			ToAddress:   cfg.RewardsFeeAddr,
			Amount:      fees,
		})
	}

	checksum, err := p.gateway.CodeChecksum(ctx, cfg.TreasuryChestCodeID)
	if err != nil {
		return err
	}
	label := denom.ChestLabel(unsettled.AuctionRound, call.Caller, call.Height)
	salt := denom.Salt(label)
	chestAddr, err := denom.PredictAddress(checksum, p.address, salt, p.prefix)
	if err != nil {
		return fmt.Errorf("treasure chest address prediction failed: %w", err)
	}

	settledLPDenom := denom.LP(p.address, unsettled.LPSubdenom)
	payload, err := json.Marshal(chestInstantiate{
		Denom:  settledLPDenom,
		Owner:  p.address,
		Notes:  settledLPDenom,
		BurnIt: false,
	})
	if err != nil {
		return err
	}

	res.addMessage(ledger.MsgInstantiateContract{
		Sender: p.address,
		Admin:  p.address,
		CodeID: cfg.TreasuryChestCodeID,
		Label:  fmt.Sprintf("Treasure chest for auction round %d", unsettled.AuctionRound),
		Msg:    payload,
		Funds:  chestFunds,
		Salt:   salt,
	})

	if err := tx.SetTreasureChest(unsettled.AuctionRound, chestAddr); err != nil {
		return err
	}

	// LP holders of the settled round redeem through the chest from now on.
	res.addMessage(ledger.MsgChangeAdmin{
		Sender:   p.address,
		Denom:    settledLPDenom,
		NewAdmin: chestAddr,
	})
	res.addMessage(ledger.MsgCreateDenom{
		Sender:   p.address,
		Subdenom: denom.Subdenom(newSubdenom),
	})

	if err := tx.SetUnsettledAuction(types.Auction{
		Basket:       current.Amount,
		AuctionRound: current.AuctionRound,
		LPSubdenom:   newSubdenom,
		ClosingTime:  current.AuctionClosingTime,
	}); err != nil {
		return err
	}

	res.addAttribute("settled_auction_round", fmt.Sprintf("%d", unsettled.AuctionRound))
	res.addAttribute("new_auction_round", fmt.Sprintf("%d", current.AuctionRound))
	res.addAttribute("treasure_chest_address", chestAddr)
	res.addAttribute("new_subdenom", denom.Subdenom(newSubdenom))
	return nil
}

// settleLost re-snapshots the tracked round. LP shares keep their subdenom
// and stay redeemable 1:1 against the unconsumed bidding balance.
func (p *Pool) settleLost(tx *state.Txn, res *Result, unsettled types.Auction, current *types.CurrentAuctionBasket) error {
	if err := tx.SetUnsettledAuction(types.Auction{
		Basket:       current.Amount,
		AuctionRound: current.AuctionRound,
		LPSubdenom:   unsettled.LPSubdenom,
		ClosingTime:  current.AuctionClosingTime,
	}); err != nil {
		return err
	}

	res.addAttribute("settled_auction_round", fmt.Sprintf("%d", unsettled.AuctionRound))
	res.addAttribute("new_auction_round", fmt.Sprintf("%d", current.AuctionRound))
	return nil
}
