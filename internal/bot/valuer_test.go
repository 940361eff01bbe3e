package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasketValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/prices", r.URL.Path)
		w.Write([]byte(`{"prices": {"atom": "2.5", "inj": "1"}}`))
	}))
	defer srv.Close()

	v := NewHTTPValuer(srv.URL)
	basket := sdk.NewCoins(
		sdk.NewCoin("atom", sdkmath.NewInt(1001)),
		sdk.NewCoin("inj", sdkmath.NewInt(500)),
	)

	total, err := v.BasketValue(context.Background(), basket)
	require.NoError(t, err)
	// floor(1001 * 2.5) + 500 * 1
	assert.Equal(t, "3002", total.String())
}

func TestBasketValueEmptyBasket(t *testing.T) {
	v := NewHTTPValuer("http://unused")
	total, err := v.BasketValue(context.Background(), sdk.NewCoins())
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestBasketValueMissingQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices": {"atom": "2.5"}}`))
	}))
	defer srv.Close()

	v := NewHTTPValuer(srv.URL)
	basket := sdk.NewCoins(
		sdk.NewCoin("atom", sdkmath.NewInt(100)),
		sdk.NewCoin("inj", sdkmath.NewInt(500)),
	)

	_, err := v.BasketValue(context.Background(), basket)
	require.ErrorIs(t, err, ErrMissingPrice)
}

func TestBasketValueRejectsBadPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices": {"atom": "-1"}}`))
	}))
	defer srv.Close()

	v := NewHTTPValuer(srv.URL)
	_, err := v.BasketValue(context.Background(), sdk.NewCoins(sdk.NewCoin("atom", sdkmath.NewInt(100))))
	require.Error(t, err)
}
