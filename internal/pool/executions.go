package pool

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openpool/pam/internal/denom"
	"github.com/openpool/pam/internal/ledger"
	"github.com/openpool/pam/internal/state"
	"github.com/openpool/pam/internal/types"
)

// InstantiateParams configures the pool at creation time.
type InstantiateParams struct {
	Owner                   string            `json:"owner"`
	NativeDenom             string            `json:"native_denom"`
	MinBalance              sdkmath.Int       `json:"min_balance"`
	RewardsFee              sdkmath.LegacyDec `json:"rewards_fee"`
	RewardsFeeAddr          string            `json:"rewards_fee_addr"`
	MinNextBidIncrementRate sdkmath.LegacyDec `json:"min_next_bid_increment_rate"`
	TreasuryChestCodeID     uint64            `json:"treasury_chest_code_id"`
	MinReturn               sdkmath.LegacyDec `json:"min_return"`
	WhitelistAddresses      []string          `json:"whitelist_addresses"`
	// InitialFunds is the native-denom funding attached to instantiation.
	InitialFunds sdk.Coin `json:"initial_funds"`
}

// Instantiate initializes the pool: validates the config, snapshots the
// external auction's current round, and mints the first LP denom.
func (p *Pool) Instantiate(ctx context.Context, msg InstantiateParams) (*Result, error) {
	rewardsFee, err := validateRate(msg.RewardsFee)
	if err != nil {
		return nil, err
	}
	incrementRate, err := validateRate(msg.MinNextBidIncrementRate)
	if err != nil {
		return nil, err
	}
	minReturn, err := validateRate(msg.MinReturn)
	if err != nil {
		return nil, err
	}
	for _, addr := range []string{msg.Owner, msg.RewardsFeeAddr} {
		if err := p.validator.Validate(addr); err != nil {
			return nil, err
		}
	}

	funding, err := mustPay(msg.InitialFunds, msg.NativeDenom)
	if err != nil {
		return nil, err
	}
	if funding.LT(msg.MinBalance) {
		return nil, InsufficientFundingError{Required: msg.MinBalance, Provided: funding}
	}

	current, err := p.gateway.CurrentAuctionBasket(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Action: "instantiate"}
	err = p.store.Update(func(tx *state.Txn) error {
		initialized, err := tx.HasConfig()
		if err != nil {
			return err
		}
		if initialized {
			return ErrAlreadyInitialized
		}

		if err := tx.SetConfig(types.Config{
			NativeDenom:             msg.NativeDenom,
			MinBalance:              msg.MinBalance,
			RewardsFee:              rewardsFee,
			RewardsFeeAddr:          msg.RewardsFeeAddr,
			MinNextBidIncrementRate: incrementRate,
			TreasuryChestCodeID:     msg.TreasuryChestCodeID,
			MinReturn:               minReturn,
		}); err != nil {
			return err
		}
		if err := tx.SetOwnership(types.Ownership{Owner: msg.Owner}); err != nil {
			return err
		}

		for _, addr := range msg.WhitelistAddresses {
			if err := p.validator.Validate(addr); err != nil {
				return err
			}
			whitelisted, err := tx.IsWhitelisted(addr)
			if err != nil {
				return err
			}
			if whitelisted {
				return AddressAlreadyWhitelistedError{Address: addr}
			}
			if err := tx.SetWhitelisted(addr); err != nil {
				return err
			}
		}

		if err := tx.SetBiddingBalance(sdkmath.ZeroInt()); err != nil {
			return err
		}
		if err := tx.SetFundsLocked(false); err != nil {
			return err
		}
		if err := tx.SetUnsettledAuction(types.Auction{
			Basket:       current.Amount,
			AuctionRound: current.AuctionRound,
			LPSubdenom:   0,
			ClosingTime:  current.AuctionClosingTime,
		}); err != nil {
			return err
		}

		res.addMessage(ledger.MsgCreateDenom{Sender: p.address, Subdenom: denom.Subdenom(0)})
		res.addAttribute("new_auction_round", fmt.Sprintf("%d", current.AuctionRound))
		res.addAttribute("lp_subdenom", denom.Subdenom(0))
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Uint64("auction_round", current.AuctionRound).
		Str("owner", msg.Owner).
		Msg("Pool instantiated")
	return res, nil
}

// UpdateConfigParams carries the owner's partial config update. Unset fields
// keep their prior value.
type UpdateConfigParams struct {
	RewardsFee              *sdkmath.LegacyDec `json:"rewards_fee,omitempty"`
	RewardsFeeAddr          *string            `json:"rewards_fee_addr,omitempty"`
	MinNextBidIncrementRate *sdkmath.LegacyDec `json:"min_next_bid_increment_rate,omitempty"`
	MinReturn               *sdkmath.LegacyDec `json:"min_return,omitempty"`
}

// UpdateConfig applies an owner-gated partial configuration update.
func (p *Pool) UpdateConfig(ctx context.Context, call CallContext, msg UpdateConfigParams) (*Result, error) {
	res := &Result{Action: "update_config"}
	err := p.store.Update(func(tx *state.Txn) error {
		if err := p.assertOwner(tx, call.Caller); err != nil {
			return err
		}

		cfg, err := tx.Config()
		if err != nil {
			return err
		}

		if msg.RewardsFee != nil {
			if cfg.RewardsFee, err = validateRate(*msg.RewardsFee); err != nil {
				return err
			}
		}
		if msg.RewardsFeeAddr != nil {
			if err := p.validator.Validate(*msg.RewardsFeeAddr); err != nil {
				return err
			}
			cfg.RewardsFeeAddr = *msg.RewardsFeeAddr
		}
		if msg.MinNextBidIncrementRate != nil {
			if cfg.MinNextBidIncrementRate, err = validateRate(*msg.MinNextBidIncrementRate); err != nil {
				return err
			}
		}
		if msg.MinReturn != nil {
			if cfg.MinReturn, err = validateRate(*msg.MinReturn); err != nil {
				return err
			}
		}

		if err := tx.SetConfig(cfg); err != nil {
			return err
		}

		res.addAttribute("rewards_fee", cfg.RewardsFee.String())
		res.addAttribute("rewards_fee_addr", cfg.RewardsFeeAddr)
		res.addAttribute("min_next_bid_increment_rate", cfg.MinNextBidIncrementRate.String())
		res.addAttribute("min_return", cfg.MinReturn.String())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateWhitelistedAddresses adds then removes whitelist entries, so an
// address present in both lists ends up removed. Adding a present address or
// removing an absent one fails the whole call.
func (p *Pool) UpdateWhitelistedAddresses(ctx context.Context, call CallContext, remove, add []string) (*Result, error) {
	res := &Result{Action: "update_whitelisted_addresses"}
	err := p.store.Update(func(tx *state.Txn) error {
		if err := p.assertOwner(tx, call.Caller); err != nil {
			return err
		}

		for _, addr := range add {
			if err := p.validator.Validate(addr); err != nil {
				return err
			}
			whitelisted, err := tx.IsWhitelisted(addr)
			if err != nil {
				return err
			}
			if whitelisted {
				return AddressAlreadyWhitelistedError{Address: addr}
			}
			if err := tx.SetWhitelisted(addr); err != nil {
				return err
			}
			res.addAttribute("added_address", addr)
		}

		for _, addr := range remove {
			if err := p.validator.Validate(addr); err != nil {
				return err
			}
			whitelisted, err := tx.IsWhitelisted(addr)
			if err != nil {
				return err
			}
			if !whitelisted {
				return AddressNotWhitelistedError{Address: addr}
			}
			if err := tx.DeleteWhitelisted(addr); err != nil {
				return err
			}
			res.addAttribute("removed_address", addr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Ownership transfer actions.
const (
	OwnershipTransfer = "transfer_ownership"
	OwnershipAccept   = "accept_ownership"
	OwnershipRenounce = "renounce_ownership"
)

// OwnershipUpdate is one step of the two-step owner transfer protocol.
type OwnershipUpdate struct {
	Action   string `json:"action"`
	NewOwner string `json:"new_owner,omitempty"`
}

// UpdateOwnership executes one ownership action: the current owner proposes
// a transfer or renounces, the proposed owner accepts.
func (p *Pool) UpdateOwnership(ctx context.Context, call CallContext, msg OwnershipUpdate) (*Result, error) {
	res := &Result{Action: "update_ownership"}
	err := p.store.Update(func(tx *state.Txn) error {
		ownership, err := tx.Ownership()
		if err != nil {
			return err
		}

		switch msg.Action {
		case OwnershipTransfer:
			if call.Caller != ownership.Owner {
				return ErrUnauthorized
			}
			if err := p.validator.Validate(msg.NewOwner); err != nil {
				return err
			}
			ownership.PendingOwner = msg.NewOwner
			res.addAttribute("pending_owner", msg.NewOwner)

		case OwnershipAccept:
			if ownership.PendingOwner == "" {
				return ErrNoPendingOwner
			}
			if call.Caller != ownership.PendingOwner {
				return ErrNotPendingOwner
			}
			ownership.Owner = ownership.PendingOwner
			ownership.PendingOwner = ""
			res.addAttribute("owner", ownership.Owner)

		case OwnershipRenounce:
			if call.Caller != ownership.Owner {
				return ErrUnauthorized
			}
			ownership.Owner = ""
			ownership.PendingOwner = ""
			res.addAttribute("owner", "")

		default:
			return fmt.Errorf("unknown ownership action %q", msg.Action)
		}

		return tx.SetOwnership(ownership)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pool) assertOwner(tx *state.Txn, caller string) error {
	ownership, err := tx.Ownership()
	if err != nil {
		return err
	}
	if caller == "" || caller != ownership.Owner {
		return ErrUnauthorized
	}
	return nil
}

// JoinPool converts an attached native-denom payment into round-scoped LP
// shares and credits the bidding balance. When basketValue is set, a bid
// attempt runs inside the same transaction; if it errors, the whole join is
// rolled back, mint and transfer included.
func (p *Pool) JoinPool(ctx context.Context, call CallContext, auctionRound uint64, payment sdk.Coin, basketValue *sdkmath.Int) (*Result, error) {
	current, err := p.gateway.CurrentAuctionBasket(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Action: "join_pool"}
	err = p.store.Update(func(tx *state.Txn) error {
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		amount, err := mustPay(payment, cfg.NativeDenom)
		if err != nil {
			return err
		}

		// Joining a round that has already rolled over would mint stale shares.
		if auctionRound != current.AuctionRound {
			return InvalidAuctionRoundError{
				CurrentAuctionRound: current.AuctionRound,
				AuctionRound:        auctionRound,
			}
		}

		auction, err := tx.UnsettledAuction()
		if err != nil {
			return err
		}
		lpDenom := denom.LP(p.address, auction.LPSubdenom)

		res.addMessage(ledger.MsgMint{
			Sender: p.address,
			Amount: sdk.NewCoin(lpDenom, amount),
		})
		res.addMessage(ledger.MsgSend{
			FromAddress: p.address,
			ToAddress:   call.Caller,
			Amount:      sdk.NewCoins(sdk.NewCoin(lpDenom, amount)),
		})

		if _, err := tx.CreditBiddingBalance(amount); err != nil {
			return err
		}

		res.addAttribute("auction_round", fmt.Sprintf("%d", auctionRound))
		res.addAttribute("sender", call.Caller)
		res.addAttribute("bid_amount", amount.String())

		if basketValue != nil {
			// Self-call: the pool triggers its own bid attempt as part of
			// the join's atomic batch.
			bidRes, err := p.tryBid(tx, CallContext{Caller: p.address, Height: call.Height},
				current, auctionRound, *basketValue)
			if err != nil {
				return err
			}
			res.Messages = append(res.Messages, bidRes.Messages...)
			res.addAttribute("bid_action", bidRes.Action)
			res.Attributes = append(res.Attributes, bidRes.Attributes...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Uint64("auction_round", auctionRound).
		Str("sender", call.Caller).
		Str("amount", payment.Amount.String()).
		Msg("Joined pool")
	return res, nil
}

// ExitPool burns attached current-round LP shares and returns native tokens
// 1:1. Refused while a bid is outstanding: the lock flag, not a time window,
// is the gate.
func (p *Pool) ExitPool(ctx context.Context, call CallContext, payment sdk.Coin) (*Result, error) {
	res := &Result{Action: "exit_pool"}
	err := p.store.Update(func(tx *state.Txn) error {
		auction, err := tx.UnsettledAuction()
		if err != nil {
			return err
		}
		lpDenom := denom.LP(p.address, auction.LPSubdenom)
		amount, err := mustPay(payment, lpDenom)
		if err != nil {
			return err
		}

		locked, err := tx.FundsLocked()
		if err != nil {
			return err
		}
		if locked {
			return ErrPooledAuctionLocked
		}

		if _, err := tx.DebitBiddingBalance(amount); err != nil {
			return err
		}

		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		res.addMessage(ledger.MsgBurn{
			Sender: p.address,
			Amount: sdk.NewCoin(lpDenom, amount),
		})
		res.addMessage(ledger.MsgSend{
			FromAddress: p.address,
			ToAddress:   call.Caller,
			Amount:      sdk.NewCoins(sdk.NewCoin(cfg.NativeDenom, amount)),
		})
		res.addAttribute("sender", call.Caller)
		res.addAttribute("amount", amount.String())
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("sender", call.Caller).
		Str("amount", payment.Amount.String()).
		Msg("Exited pool")
	return res, nil
}

// TryBid runs the bid decision rule for the given round, callable by the
// pool itself or a whitelisted principal. Failing a sizing check is a no-op
// result, not an error; only authorization and round mismatches are errors.
func (p *Pool) TryBid(ctx context.Context, call CallContext, auctionRound uint64, basketValue sdkmath.Int) (*Result, error) {
	current, err := p.gateway.CurrentAuctionBasket(ctx)
	if err != nil {
		return nil, err
	}

	var res *Result
	err = p.store.Update(func(tx *state.Txn) error {
		res, err = p.tryBid(tx, call, current, auctionRound, basketValue)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pool) tryBid(tx *state.Txn, call CallContext, current *types.CurrentAuctionBasket, auctionRound uint64, basketValue sdkmath.Int) (*Result, error) {
	if call.Caller != p.address {
		whitelisted, err := tx.IsWhitelisted(call.Caller)
		if err != nil {
			return nil, err
		}
		if !whitelisted {
			return nil, ErrUnauthorized
		}
	}

	if auctionRound != current.AuctionRound {
		return nil, InvalidAuctionRoundError{
			CurrentAuctionRound: current.AuctionRound,
			AuctionRound:        auctionRound,
		}
	}

	// Outbidding ourselves would only burn balance.
	if current.HighestBidder == p.address {
		return didNotBid("contract_is_already_the_highest_bidder"), nil
	}

	cfg, err := tx.Config()
	if err != nil {
		return nil, err
	}
	minBid := minimumAllowedBid(current.HighestBidAmount, cfg.MinNextBidIncrementRate)

	balance, err := tx.BiddingBalance()
	if err != nil {
		return nil, err
	}
	if minBid.GT(balance) {
		return didNotBid("minimum_allowed_bid_is_higher_than_bidding_balance"), nil
	}

	// The basket valuation is a caller-supplied estimate; the engine trusts
	// it and only enforces the configured return floor against it.
	netValue := sdkmath.LegacyNewDecFromInt(basketValue).
		Mul(sdkmath.LegacyOneDec().Sub(cfg.MinReturn)).
		TruncateInt()
	if netValue.LT(minBid) {
		return didNotBid("basket_value_is_not_worth_bidding_for"), nil
	}

	if err := tx.SetFundsLocked(true); err != nil {
		return nil, err
	}

	res := &Result{Action: "try_bid"}
	res.addMessage(ledger.MsgBid{
		Sender:    p.address,
		Round:     auctionRound,
		BidAmount: sdk.NewCoin(cfg.NativeDenom, minBid),
	})
	res.addAttribute("amount", minBid.String())

	p.logger.Info().
		Uint64("auction_round", auctionRound).
		Str("bid_amount", minBid.String()).
		Msg("Placing bid")
	return res, nil
}

func didNotBid(reason string) *Result {
	res := &Result{Action: "did_not_bid"}
	res.addAttribute("reason", reason)
	return res
}
