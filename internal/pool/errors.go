package pool

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

var (
	// ErrUnauthorized rejects callers that are neither the pool itself, the
	// owner, nor whitelisted, depending on the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPooledAuctionLocked refuses withdrawals while a bid is outstanding,
	// so the bid can never become under-collateralized by a last-moment exit.
	ErrPooledAuctionLocked = errors.New("pooled auction is locked, no withdrawals allowed until the round settles")

	// ErrAuctionRoundHasNotFinished refuses settlement while the external
	// auction module still reports the unsettled round as current.
	ErrAuctionRoundHasNotFinished = errors.New("auction round has not finished")

	ErrMissingAuctionWinner     = errors.New("missing auction winner")
	ErrMissingAuctionWinningBid = errors.New("missing auction winning bid")
	ErrEmptyBasketRewards       = errors.New("won basket is empty")

	// ErrSubdenomOverflow is fatal: the LP subdenom counter can never wrap.
	ErrSubdenomOverflow = errors.New("lp subdenom overflow")

	ErrAlreadyInitialized = errors.New("pool is already instantiated")

	ErrNoPendingOwner  = errors.New("no pending ownership transfer")
	ErrNotPendingOwner = errors.New("caller is not the pending owner")

	ErrZeroPayment = errors.New("payment amount must be positive")
)

// InvalidAuctionRoundError rejects operations referencing a round other than
// the one currently tracked/queried.
type InvalidAuctionRoundError struct {
	CurrentAuctionRound uint64
	AuctionRound        uint64
}

func (e InvalidAuctionRoundError) Error() string {
	return fmt.Sprintf("invalid auction round: current auction round %d, auction round %d",
		e.CurrentAuctionRound, e.AuctionRound)
}

// InvalidRateError rejects fractional parameters above 100%.
type InvalidRateError struct {
	Rate sdkmath.LegacyDec
}

func (e InvalidRateError) Error() string {
	return fmt.Sprintf("invalid rate: %s is above 1.0", e.Rate)
}

type AddressAlreadyWhitelistedError struct {
	Address string
}

func (e AddressAlreadyWhitelistedError) Error() string {
	return fmt.Sprintf("address %s is already whitelisted", e.Address)
}

type AddressNotWhitelistedError struct {
	Address string
}

func (e AddressNotWhitelistedError) Error() string {
	return fmt.Sprintf("address %s is not whitelisted", e.Address)
}

// PaymentDenomError rejects attached funds of the wrong denom.
type PaymentDenomError struct {
	Expected string
	Got      string
}

func (e PaymentDenomError) Error() string {
	return fmt.Sprintf("must pay with %s, got %s", e.Expected, e.Got)
}

// InsufficientFundingError rejects instantiation below the configured
// minimum contract balance.
type InsufficientFundingError struct {
	Required sdkmath.Int
	Provided sdkmath.Int
}

func (e InsufficientFundingError) Error() string {
	return fmt.Sprintf("insufficient funding: required %s, provided %s", e.Required, e.Provided)
}
