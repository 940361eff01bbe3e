package types

import (
	sdkmath "cosmossdk.io/math"
)

// Config is the pool's singleton configuration. Only the owner may mutate it.
type Config struct {
	// NativeDenom is the settlement denom deposits and bids are made in.
	NativeDenom string `json:"native_denom"`
	// MinBalance is the minimum funding the pool must be instantiated with.
	MinBalance sdkmath.Int `json:"min_balance"`
	// RewardsFee is the cut taken from each basket coin on a won round, in [0, 1].
	RewardsFee sdkmath.LegacyDec `json:"rewards_fee"`
	// RewardsFeeAddr receives the fee cut.
	RewardsFeeAddr string `json:"rewards_fee_addr"`
	// MinNextBidIncrementRate is the auction module's minimum improvement
	// over the current highest bid, in [0, 1].
	MinNextBidIncrementRate sdkmath.LegacyDec `json:"min_next_bid_increment_rate"`
	// TreasuryChestCodeID identifies the custody contract template.
	TreasuryChestCodeID uint64 `json:"treasury_chest_code_id"`
	// MinReturn is the minimum acceptable return on a bid, in [0, 1].
	MinReturn sdkmath.LegacyDec `json:"min_return"`
}

// Ownership tracks the two-step owner transfer protocol: the current owner
// proposes, the proposed owner must accept before it takes effect.
type Ownership struct {
	Owner        string `json:"owner"`
	PendingOwner string `json:"pending_owner,omitempty"`
}

// Attribute is a key/value pair describing an operation's observable outcome.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
