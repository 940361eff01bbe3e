package state

import (
	"encoding/json"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/cockroachdb/pebble"

	"github.com/openpool/pam/internal/types"
)

// Storage keys. Singletons are bare keys; logical maps get a prefix. Chest
// keys zero-pad the round so iteration order is ascending by round.
const (
	keyConfig           = "config"
	keyOwnership        = "ownership"
	keyBiddingBalance   = "bidding_balance"
	keyFundsLocked      = "funds_locked"
	keyUnsettledAuction = "unsettled_auction"
	prefixWhitelist     = "whitelisted_addresses/"
	prefixChest         = "treasure_chest_contracts/"
)

func chestKey(round uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixChest, round))
}

// Txn is a read-your-writes view over one call's storage mutations.
type Txn struct {
	b *pebble.Batch
}

func (t *Txn) get(key string) ([]byte, error) {
	val, closer, err := t.b.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (t *Txn) getJSON(key string, v any) error {
	raw, err := t.get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (t *Txn) setJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.b.Set([]byte(key), raw, nil)
}

// HasConfig reports whether the pool has been instantiated.
func (t *Txn) HasConfig() (bool, error) {
	_, err := t.get(keyConfig)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *Txn) Config() (types.Config, error) {
	var cfg types.Config
	if err := t.getJSON(keyConfig, &cfg); err != nil {
		if errors.Is(err, ErrNotFound) {
			return cfg, ErrNotInitialized
		}
		return cfg, err
	}
	return cfg, nil
}

func (t *Txn) SetConfig(cfg types.Config) error {
	return t.setJSON(keyConfig, cfg)
}

func (t *Txn) Ownership() (types.Ownership, error) {
	var o types.Ownership
	if err := t.getJSON(keyOwnership, &o); err != nil {
		if errors.Is(err, ErrNotFound) {
			return o, ErrNotInitialized
		}
		return o, err
	}
	return o, nil
}

func (t *Txn) SetOwnership(o types.Ownership) error {
	return t.setJSON(keyOwnership, o)
}

func (t *Txn) BiddingBalance() (sdkmath.Int, error) {
	var bal sdkmath.Int
	if err := t.getJSON(keyBiddingBalance, &bal); err != nil {
		if errors.Is(err, ErrNotFound) {
			return sdkmath.ZeroInt(), ErrNotInitialized
		}
		return sdkmath.ZeroInt(), err
	}
	return bal, nil
}

func (t *Txn) SetBiddingBalance(bal sdkmath.Int) error {
	return t.setJSON(keyBiddingBalance, bal)
}

// CreditBiddingBalance adds amount to the balance and returns the new value.
func (t *Txn) CreditBiddingBalance(amount sdkmath.Int) (sdkmath.Int, error) {
	bal, err := t.BiddingBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	bal = bal.Add(amount)
	if err := t.SetBiddingBalance(bal); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return bal, nil
}

// DebitBiddingBalance subtracts amount from the balance, failing with
// ErrInsufficientBiddingBalance instead of going negative.
func (t *Txn) DebitBiddingBalance(amount sdkmath.Int) (sdkmath.Int, error) {
	bal, err := t.BiddingBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if bal.LT(amount) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: balance %s, debit %s",
			ErrInsufficientBiddingBalance, bal, amount)
	}
	bal = bal.Sub(amount)
	if err := t.SetBiddingBalance(bal); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return bal, nil
}

func (t *Txn) FundsLocked() (bool, error) {
	var locked bool
	if err := t.getJSON(keyFundsLocked, &locked); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return locked, nil
}

func (t *Txn) SetFundsLocked(locked bool) error {
	return t.setJSON(keyFundsLocked, locked)
}

func (t *Txn) UnsettledAuction() (types.Auction, error) {
	var a types.Auction
	if err := t.getJSON(keyUnsettledAuction, &a); err != nil {
		if errors.Is(err, ErrNotFound) {
			return a, ErrNotInitialized
		}
		return a, err
	}
	return a, nil
}

func (t *Txn) SetUnsettledAuction(a types.Auction) error {
	return t.setJSON(keyUnsettledAuction, a)
}

func (t *Txn) IsWhitelisted(addr string) (bool, error) {
	_, err := t.get(prefixWhitelist + addr)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *Txn) SetWhitelisted(addr string) error {
	return t.b.Set([]byte(prefixWhitelist+addr), []byte{1}, nil)
}

func (t *Txn) DeleteWhitelisted(addr string) error {
	return t.b.Delete([]byte(prefixWhitelist+addr), nil)
}

// WhitelistedAddresses returns every whitelisted address in key order.
func (t *Txn) WhitelistedAddresses() ([]string, error) {
	lower := []byte(prefixWhitelist)
	upper := []byte(prefixWhitelist + "\xff")
	iter, err := t.b.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var addrs []string
	for iter.First(); iter.Valid(); iter.Next() {
		addrs = append(addrs, string(iter.Key())[len(prefixWhitelist):])
	}
	return addrs, iter.Error()
}

func (t *Txn) SetTreasureChest(round uint64, addr string) error {
	return t.b.Set(chestKey(round), []byte(addr), nil)
}

// TreasureChests lists custody contracts ascending by round, starting after
// startAfter when set, up to limit entries.
func (t *Txn) TreasureChests(startAfter *uint64, limit int) ([]types.TreasureChest, error) {
	lower := []byte(prefixChest)
	if startAfter != nil {
		lower = chestKey(*startAfter + 1)
	}
	upper := []byte(prefixChest + "\xff")
	iter, err := t.b.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var chests []types.TreasureChest
	for iter.First(); iter.Valid() && len(chests) < limit; iter.Next() {
		var round uint64
		if _, err := fmt.Sscanf(string(iter.Key())[len(prefixChest):], "%020d", &round); err != nil {
			return nil, fmt.Errorf("malformed treasure chest key %q: %w", iter.Key(), err)
		}
		chests = append(chests, types.TreasureChest{
			AuctionRound: round,
			Address:      string(iter.Value()),
		})
	}
	return chests, iter.Error()
}
