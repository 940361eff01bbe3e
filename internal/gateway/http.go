package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/openpool/pam/internal/logger"
	"github.com/openpool/pam/internal/types"
)

const (
	currentBasketPath = "/injective/auction/v1beta1/basket"
	codeInfoPath      = "/cosmwasm/wasm/v1/code/%d"
	latestBlockPath   = "/cosmos/base/tendermint/v1beta1/blocks/latest"

	queryTimeout = 10 * time.Second
)

// HTTPQuerier talks to the chain node's REST gateway.
type HTTPQuerier struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewHTTPQuerier(baseURL string) *HTTPQuerier {
	return &HTTPQuerier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: queryTimeout},
		logger:  logger.GetForComponent("auction_gateway"),
	}
}

// Wire shapes: the REST gateway renders proto JSON, so integers arrive as
// decimal strings and field names are camelCase.
type wireCoin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type wireCurrentBasket struct {
	Amount             []wireCoin `json:"amount"`
	AuctionRound       string     `json:"auctionRound"`
	AuctionClosingTime string     `json:"auctionClosingTime"`
	HighestBidder      string     `json:"highestBidder"`
	HighestBidAmount   string     `json:"highestBidAmount"`
}

type wireCodeInfo struct {
	CodeInfo struct {
		DataHash string `json:"data_hash"`
	} `json:"code_info"`
}

type wireLatestBlock struct {
	Block struct {
		Header struct {
			Height string `json:"height"`
		} `json:"header"`
	} `json:"block"`
}

func (q *HTTPQuerier) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (q *HTTPQuerier) CurrentAuctionBasket(ctx context.Context) (*types.CurrentAuctionBasket, error) {
	var wire wireCurrentBasket
	if err := q.getJSON(ctx, currentBasketPath, &wire); err != nil {
		return nil, errors.Join(ErrCurrentAuctionQuery, err)
	}

	basket := sdk.NewCoins()
	for _, c := range wire.Amount {
		amount, ok := sdkmath.NewIntFromString(c.Amount)
		if !ok {
			return nil, fmt.Errorf("%w: bad basket amount %q", ErrCurrentAuctionQuery, c.Amount)
		}
		basket = basket.Add(sdk.NewCoin(c.Denom, amount))
	}

	round, err := strconv.ParseUint(wire.AuctionRound, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad auction round %q", ErrCurrentAuctionQuery, wire.AuctionRound)
	}
	closing, err := strconv.ParseInt(wire.AuctionClosingTime, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad closing time %q", ErrCurrentAuctionQuery, wire.AuctionClosingTime)
	}

	highestBid := sdkmath.ZeroInt()
	if wire.HighestBidAmount != "" {
		var ok bool
		highestBid, ok = sdkmath.NewIntFromString(wire.HighestBidAmount)
		if !ok {
			return nil, fmt.Errorf("%w: bad highest bid %q", ErrCurrentAuctionQuery, wire.HighestBidAmount)
		}
	}

	q.logger.Debug().
		Uint64("auction_round", round).
		Str("highest_bidder", wire.HighestBidder).
		Str("highest_bid", highestBid.String()).
		Msg("Fetched current auction basket")

	return &types.CurrentAuctionBasket{
		Amount:             basket,
		AuctionRound:       round,
		AuctionClosingTime: closing,
		HighestBidder:      wire.HighestBidder,
		HighestBidAmount:   highestBid,
	}, nil
}

func (q *HTTPQuerier) CodeChecksum(ctx context.Context, codeID uint64) ([]byte, error) {
	var wire wireCodeInfo
	if err := q.getJSON(ctx, fmt.Sprintf(codeInfoPath, codeID), &wire); err != nil {
		return nil, fmt.Errorf("code info query failed for code %d: %w", codeID, err)
	}
	checksum, err := hex.DecodeString(wire.CodeInfo.DataHash)
	if err != nil {
		return nil, fmt.Errorf("bad code checksum for code %d: %w", codeID, err)
	}
	if len(checksum) == 0 {
		return nil, fmt.Errorf("empty code checksum for code %d", codeID)
	}
	return checksum, nil
}

func (q *HTTPQuerier) LatestHeight(ctx context.Context) (uint64, error) {
	var wire wireLatestBlock
	if err := q.getJSON(ctx, latestBlockPath, &wire); err != nil {
		return 0, fmt.Errorf("latest block query failed: %w", err)
	}
	height, err := strconv.ParseUint(wire.Block.Header.Height, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad block height %q: %w", wire.Block.Header.Height, err)
	}
	return height, nil
}
