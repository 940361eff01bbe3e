// Package pool implements the auction-pool contract: deposits become a
// shared bidding balance, a fixed sizing rule competes in the external
// basket auction, and settlement carries balances, LP shares, and winnings
// into the next round.
package pool

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/openpool/pam/internal/gateway"
	"github.com/openpool/pam/internal/ledger"
	"github.com/openpool/pam/internal/logger"
	"github.com/openpool/pam/internal/state"
	"github.com/openpool/pam/internal/types"
)

// Pool is the contract engine. All state lives in the store; the struct only
// carries identity and collaborators.
type Pool struct {
	address   string
	prefix    string
	store     *state.Store
	gateway   gateway.Querier
	validator ledger.AddressValidator
	logger    zerolog.Logger
}

// Config holds the dependencies for creating a Pool.
type Config struct {
	// Address is the pool's own account address on the host ledger.
	Address string
	// Bech32Prefix is the host ledger's address prefix.
	Bech32Prefix string
	Store        *state.Store
	Gateway      gateway.Querier
	Validator    ledger.AddressValidator
}

// New creates a Pool after validating its dependencies.
func New(cfg Config) (*Pool, error) {
	if err := validatePoolConfig(cfg); err != nil {
		return nil, fmt.Errorf("pool configuration validation failed: %w", err)
	}
	return &Pool{
		address:   cfg.Address,
		prefix:    cfg.Bech32Prefix,
		store:     cfg.Store,
		gateway:   cfg.Gateway,
		validator: cfg.Validator,
		logger:    logger.GetForComponent("auction_pool"),
	}, nil
}

func validatePoolConfig(cfg Config) error {
	if cfg.Address == "" {
		return errors.New("pool address cannot be empty")
	}
	if cfg.Bech32Prefix == "" {
		return errors.New("bech32 prefix cannot be empty")
	}
	if cfg.Store == nil {
		return errors.New("state store cannot be nil")
	}
	if cfg.Gateway == nil {
		return errors.New("auction gateway cannot be nil")
	}
	if cfg.Validator == nil {
		return errors.New("address validator cannot be nil")
	}
	return nil
}

// Address returns the pool's own account address.
func (p *Pool) Address() string {
	return p.address
}

// CallContext identifies the principal behind one external call.
type CallContext struct {
	// Caller is the declared sender. Authorization is checked against the
	// stored owner/whitelist state, not against transport identity.
	Caller string
	// Height is the chain height the call is anchored at; used only in
	// custody-contract labels, never for ordering.
	Height uint64
}

// Result is an operation's observable outcome: an action tag, attributes,
// and the outbound message batch. The batch must be dispatched only after
// the call's storage writes have committed.
type Result struct {
	Action     string            `json:"action"`
	Attributes []types.Attribute `json:"attributes,omitempty"`
	Messages   []ledger.Msg      `json:"messages,omitempty"`
}

func (r *Result) addAttribute(key, value string) {
	r.Attributes = append(r.Attributes, types.Attribute{Key: key, Value: value})
}

func (r *Result) addMessage(msg ledger.Msg) {
	r.Messages = append(r.Messages, msg)
}

// validateRate rejects fractional parameters above 100%.
func validateRate(rate sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if rate.IsNil() || rate.IsNegative() || rate.GT(sdkmath.LegacyOneDec()) {
		return sdkmath.LegacyDec{}, InvalidRateError{Rate: rate}
	}
	return rate, nil
}

// minimumAllowedBid computes ceil(highestBid × (1 + incrementRate)) + 1.
// The trailing +1 keeps the bid a strict improvement even when a competitor
// rounds the same way, so the auction module never rejects it as equal.
func minimumAllowedBid(highestBid sdkmath.Int, incrementRate sdkmath.LegacyDec) sdkmath.Int {
	return sdkmath.LegacyNewDecFromInt(highestBid).
		Mul(sdkmath.LegacyOneDec().Add(incrementRate)).
		Ceil().TruncateInt().
		Add(sdkmath.OneInt())
}

// mustPay enforces that exactly one positive coin of the expected denom was
// attached, and returns its amount.
func mustPay(payment sdk.Coin, expectedDenom string) (sdkmath.Int, error) {
	if payment.Denom != expectedDenom {
		return sdkmath.ZeroInt(), PaymentDenomError{Expected: expectedDenom, Got: payment.Denom}
	}
	if payment.Amount.IsNil() || !payment.Amount.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroPayment
	}
	return payment.Amount, nil
}
