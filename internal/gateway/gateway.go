// Package gateway is the read-only adapter to the external auction module.
// Its queries have no transactional relationship with the pool's storage:
// the pool and the auction module can disagree on the current round within
// the same block region, which is why every operation re-checks round numbers.
package gateway

import (
	"context"
	"errors"

	"github.com/openpool/pam/internal/types"
)

// ErrCurrentAuctionQuery wraps any failure to fetch or parse the current
// auction snapshot. Never retried internally: the triggering operation aborts.
var ErrCurrentAuctionQuery = errors.New("current auction query failed")

// Querier is the pool's window into the host chain.
type Querier interface {
	// CurrentAuctionBasket returns the live round's basket, round number,
	// closing time, and leading bid.
	CurrentAuctionBasket(ctx context.Context) (*types.CurrentAuctionBasket, error)

	// CodeChecksum returns the stored checksum of a contract code template.
	CodeChecksum(ctx context.Context, codeID uint64) ([]byte, error)

	// LatestHeight returns the chain's latest block height.
	LatestHeight(ctx context.Context) (uint64, error)
}
