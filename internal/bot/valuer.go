package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openpool/pam/internal/logger"
)

var valuerLogger = logger.GetForComponent("basket_valuer")

var ErrMissingPrice = errors.New("price feed is missing a basket denom")

// Valuer estimates a basket's worth in the pool's native denom. The engine
// treats the estimate as opaque; how it is produced is the bot's business.
type Valuer interface {
	BasketValue(ctx context.Context, basket sdk.Coins) (sdkmath.Int, error)
}

// HTTPValuer prices baskets against an external price API that quotes every
// denom in native-denom units.
type HTTPValuer struct {
	baseURL string
	client  *http.Client
}

// pricesResponse is the price API's wire shape: decimal strings keyed by denom.
type pricesResponse struct {
	Prices map[string]string `json:"prices"`
}

// NewHTTPValuer creates a Valuer backed by the price API at baseURL.
func NewHTTPValuer(baseURL string) *HTTPValuer {
	return &HTTPValuer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// BasketValue fetches a quote for every denom in the basket and sums
// floor(amount × price). A denom the feed cannot price fails the whole
// valuation; guessing a price here would feed the bid rule garbage.
func (v *HTTPValuer) BasketValue(ctx context.Context, basket sdk.Coins) (sdkmath.Int, error) {
	if basket.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	denoms := make([]string, 0, len(basket))
	for _, coin := range basket {
		denoms = append(denoms, coin.Denom)
	}

	endpoint := fmt.Sprintf("%s/v1/prices?denoms=%s", v.baseURL, url.QueryEscape(strings.Join(denoms, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("price feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sdkmath.ZeroInt(), fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	var quotes pricesResponse
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to decode price response: %w", err)
	}

	total := sdkmath.ZeroInt()
	for _, coin := range basket {
		raw, ok := quotes.Prices[coin.Denom]
		if !ok {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrMissingPrice, coin.Denom)
		}
		price, err := sdkmath.LegacyNewDecFromStr(raw)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("invalid price %q for denom %s: %w", raw, coin.Denom, err)
		}
		if price.IsNegative() {
			return sdkmath.ZeroInt(), fmt.Errorf("negative price %q for denom %s", raw, coin.Denom)
		}
		total = total.Add(price.MulInt(coin.Amount).TruncateInt())
	}

	valuerLogger.Debug().
		Int("denoms", len(basket)).
		Str("total_value", total.String()).
		Msg("Basket valued")
	return total, nil
}
