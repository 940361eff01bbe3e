package pool

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/openpool/pam/internal/state"
	"github.com/openpool/pam/internal/types"
)

// DefaultChestQueryLimit caps TreasureChestContracts pagination when the
// caller does not set a limit.
const DefaultChestQueryLimit = 50

func (p *Pool) GetConfig() (types.Config, error) {
	var cfg types.Config
	err := p.store.View(func(tx *state.Txn) error {
		var err error
		cfg, err = tx.Config()
		return err
	})
	return cfg, err
}

func (p *Pool) GetOwnership() (types.Ownership, error) {
	var o types.Ownership
	err := p.store.View(func(tx *state.Txn) error {
		var err error
		o, err = tx.Ownership()
		return err
	})
	return o, err
}

func (p *Pool) GetWhitelistedAddresses() ([]string, error) {
	var addrs []string
	err := p.store.View(func(tx *state.Txn) error {
		var err error
		addrs, err = tx.WhitelistedAddresses()
		return err
	})
	return addrs, err
}

func (p *Pool) GetBiddingBalance() (sdkmath.Int, error) {
	bal := sdkmath.ZeroInt()
	err := p.store.View(func(tx *state.Txn) error {
		var err error
		bal, err = tx.BiddingBalance()
		return err
	})
	return bal, err
}

func (p *Pool) GetFundsLocked() (bool, error) {
	var locked bool
	err := p.store.View(func(tx *state.Txn) error {
		var err error
		locked, err = tx.FundsLocked()
		return err
	})
	return locked, err
}

func (p *Pool) GetUnsettledAuction() (types.Auction, error) {
	var a types.Auction
	err := p.store.View(func(tx *state.Txn) error {
		var err error
		a, err = tx.UnsettledAuction()
		return err
	})
	return a, err
}

// GetTreasureChestContracts pages through won-round custody contracts,
// ascending by round.
func (p *Pool) GetTreasureChestContracts(startAfter *uint64, limit int) ([]types.TreasureChest, error) {
	if limit <= 0 {
		limit = DefaultChestQueryLimit
	}
	var chests []types.TreasureChest
	err := p.store.View(func(tx *state.Txn) error {
		var err error
		chests, err = tx.TreasureChests(startAfter, limit)
		return err
	})
	return chests, err
}

// GetCurrentAuctionBasket proxies the external gateway's live snapshot.
func (p *Pool) GetCurrentAuctionBasket(ctx context.Context) (*types.CurrentAuctionBasket, error) {
	return p.gateway.CurrentAuctionBasket(ctx)
}
