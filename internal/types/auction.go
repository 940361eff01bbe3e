package types

import (
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Auction is the round the pool is currently participating in, i.e. the round
// whose outcome has not been settled yet. It is replaced wholesale on every
// settlement.
type Auction struct {
	// Basket holds the coins being auctioned in this round.
	Basket sdk.Coins `json:"basket"`
	// AuctionRound is the external auction module's round number.
	AuctionRound uint64 `json:"auction_round"`
	// LPSubdenom versions the LP share token. It increments by exactly one
	// when the pool wins a round, so new-round depositors never commingle
	// with old-round claims.
	LPSubdenom uint64 `json:"lp_subdenom"`
	// ClosingTime is the unix time (seconds) at which the round closes.
	ClosingTime int64 `json:"closing_time"`
}

// CurrentAuctionBasket is the external auction module's view of the live
// round, as returned by the gateway query.
type CurrentAuctionBasket struct {
	Amount             sdk.Coins   `json:"amount"`
	AuctionRound       uint64      `json:"auction_round"`
	AuctionClosingTime int64       `json:"auction_closing_time"`
	HighestBidder      string      `json:"highest_bidder"`
	HighestBidAmount   sdkmath.Int `json:"highest_bid_amount"`
}

// TreasureChest records the custody contract instantiated for a won round.
type TreasureChest struct {
	AuctionRound uint64 `json:"auction_round"`
	Address      string `json:"address"`
}
