// Package denom owns the compound token identifiers and the deterministic
// contract-address derivation used at settlement time.
package denom

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cosmos/cosmos-sdk/types/bech32"
)

var ErrNotLPDenom = errors.New("not an LP share denom")

// Subdenom returns the token-factory subdenom backing round version n.
func Subdenom(n uint64) string {
	return fmt.Sprintf("auction.%d", n)
}

// LP returns the full round-versioned LP share denom minted by the pool.
func LP(contractAddr string, n uint64) string {
	return fmt.Sprintf("factory/%s/%s", contractAddr, Subdenom(n))
}

// ParseLP extracts the round version from an LP share denom minted by
// contractAddr. Fails with ErrNotLPDenom for anything else.
func ParseLP(contractAddr, d string) (uint64, error) {
	prefix := fmt.Sprintf("factory/%s/auction.", contractAddr)
	if !strings.HasPrefix(d, prefix) {
		return 0, fmt.Errorf("%w: %s", ErrNotLPDenom, d)
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(d, prefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrNotLPDenom, d)
	}
	return n, nil
}

// ChestLabel builds the custody contract label for a settled round. Round,
// caller, and height together keep labels unique across rounds and resubmits.
func ChestLabel(auctionRound uint64, caller string, height uint64) string {
	return fmt.Sprintf("treasure_chest/%d/%s/%d", auctionRound, caller, height)
}

// Salt derives the instantiation salt from a label. Salts are capped at 64
// bytes by the host ledger.
func Salt(label string) []byte {
	b := []byte(label)
	if len(b) > 64 {
		b = b[:64]
	}
	return b
}

// PredictAddress derives the address a contract instantiated from the given
// code template, by the given creator, with the given salt, will live at. It
// is a pure function of its inputs so the same call that instantiates the
// contract can already reference its address.
func PredictAddress(checksum []byte, creator string, salt []byte, prefix string) (string, error) {
	if len(checksum) == 0 {
		return "", errors.New("empty code checksum")
	}
	_, creatorBytes, err := bech32.DecodeAndConvert(creator)
	if err != nil {
		return "", fmt.Errorf("invalid creator address: %w", err)
	}

	h := sha256.New()
	h.Write(checksum)
	h.Write(creatorBytes)
	h.Write(salt)
	full := h.Sum(nil)

	// Contract addresses are 20 bytes on the host ledger.
	addr, err := bech32.ConvertAndEncode(prefix, full[:20])
	if err != nil {
		return "", fmt.Errorf("address encoding failed: %w", err)
	}
	return addr, nil
}
