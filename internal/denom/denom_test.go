package denom

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddr(t *testing.T, prefix string) string {
	t.Helper()
	addr, err := bech32.ConvertAndEncode(prefix, bytes.Repeat([]byte{0x42}, 20))
	require.NoError(t, err)
	return addr
}

func TestLPRoundTrip(t *testing.T) {
	assert.Equal(t, "auction.0", Subdenom(0))
	assert.Equal(t, "auction.17", Subdenom(17))

	lp := LP("contract1", 5)
	assert.Equal(t, "factory/contract1/auction.5", lp)

	n, err := ParseLP("contract1", lp)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
}

func TestParseLPRejectsForeignDenoms(t *testing.T) {
	for _, d := range []string{
		"inj",
		"factory/other/auction.5",
		"factory/contract1/pool.5",
		"factory/contract1/auction.x",
		"factory/contract1/auction.",
	} {
		_, err := ParseLP("contract1", d)
		assert.ErrorIs(t, err, ErrNotLPDenom, "denom %q", d)
	}
}

func TestChestLabel(t *testing.T) {
	label := ChestLabel(12, "caller1", 900)
	assert.Equal(t, "treasure_chest/12/caller1/900", label)
}

func TestSaltCapped(t *testing.T) {
	short := Salt("abc")
	assert.Equal(t, []byte("abc"), short)

	long := Salt(strings.Repeat("x", 200))
	assert.Len(t, long, 64)
}

func TestPredictAddressDeterministic(t *testing.T) {
	creator := testAddr(t, "inj")
	checksum := bytes.Repeat([]byte{0xAB}, 32)
	salt := []byte("treasure_chest/1/caller/100")

	addr1, err := PredictAddress(checksum, creator, salt, "inj")
	require.NoError(t, err)
	addr2, err := PredictAddress(checksum, creator, salt, "inj")
	require.NoError(t, err)
	assert.Equal(t, addr1, addr2)
	assert.True(t, strings.HasPrefix(addr1, "inj1"))

	// The derived address decodes to 20 bytes.
	_, raw, err := bech32.DecodeAndConvert(addr1)
	require.NoError(t, err)
	assert.Len(t, raw, 20)

	// Any input change moves the address.
	addr3, err := PredictAddress(checksum, creator, []byte("other-salt"), "inj")
	require.NoError(t, err)
	assert.NotEqual(t, addr1, addr3)
}

func TestPredictAddressRejectsBadInputs(t *testing.T) {
	creator := testAddr(t, "inj")

	_, err := PredictAddress(nil, creator, []byte("salt"), "inj")
	require.Error(t, err)

	_, err = PredictAddress(bytes.Repeat([]byte{1}, 32), "not-bech32", []byte("salt"), "inj")
	require.Error(t, err)
}
