package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/cosmos/cosmos-sdk/types/bech32"
)

var (
	ErrEmptyAddress   = errors.New("address is empty")
	ErrInvalidAddress = errors.New("address is invalid")
)

// Dispatcher delivers a committed batch of outbound messages to whatever
// executes them (a signing relayer, in production). Implementations must
// treat the batch as a unit: either all messages are accepted or none.
type Dispatcher interface {
	Dispatch(ctx context.Context, batchID string, msgs []Msg) error
}

// AddressValidator checks that a string is a well-formed account address on
// the host ledger. Address semantics belong to the ledger, not the pool, so
// the pool only ever sees this interface.
type AddressValidator interface {
	Validate(addr string) error
}

// Bech32Validator validates bech32 account addresses against a fixed prefix.
type Bech32Validator struct {
	Prefix string
}

func (v Bech32Validator) Validate(addr string) error {
	if addr == "" {
		return ErrEmptyAddress
	}
	hrp, bz, err := bech32.DecodeAndConvert(addr)
	if err != nil {
		return errors.Join(ErrInvalidAddress, err)
	}
	if hrp != v.Prefix {
		return fmt.Errorf("%w: expected prefix %q, got %q", ErrInvalidAddress, v.Prefix, hrp)
	}
	if len(bz) == 0 {
		return fmt.Errorf("%w: empty address bytes", ErrInvalidAddress)
	}
	return nil
}

// NopDispatcher drops every batch. Used when the relayer integration is
// disabled and messages are only recorded through logs.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, string, []Msg) error { return nil }
