package ledger

import (
	"encoding/json"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Msg is a single outbound host-ledger message produced by a pool operation.
// The pool never executes these itself: a batch is handed to a Dispatcher
// only after the state transaction that produced it has committed.
type Msg interface {
	// MsgType returns the routing key of the message, e.g. "bank/send".
	MsgType() string
}

// MsgSend transfers coins from the pool account to another account.
type MsgSend struct {
	FromAddress string    `json:"from_address"`
	ToAddress   string    `json:"to_address"`
	Amount      sdk.Coins `json:"amount"`
}

func (MsgSend) MsgType() string { return "bank/send" }

// MsgMint mints token-factory coins to the sender's account.
type MsgMint struct {
	Sender string   `json:"sender"`
	Amount sdk.Coin `json:"amount"`
}

func (MsgMint) MsgType() string { return "tokenfactory/mint" }

// MsgBurn burns token-factory coins held by the sender.
type MsgBurn struct {
	Sender string   `json:"sender"`
	Amount sdk.Coin `json:"amount"`
}

func (MsgBurn) MsgType() string { return "tokenfactory/burn" }

// MsgCreateDenom registers a new token-factory subdenom under the sender.
type MsgCreateDenom struct {
	Sender   string `json:"sender"`
	Subdenom string `json:"subdenom"`
}

func (MsgCreateDenom) MsgType() string { return "tokenfactory/create_denom" }

// MsgChangeAdmin hands administrative control of a token-factory denom over
// to another account.
type MsgChangeAdmin struct {
	Sender   string `json:"sender"`
	Denom    string `json:"denom"`
	NewAdmin string `json:"new_admin"`
}

func (MsgChangeAdmin) MsgType() string { return "tokenfactory/change_admin" }

// MsgBid places a bid in the external auction module. Fire-and-forget: the
// pool observes no synchronous result.
type MsgBid struct {
	Sender    string   `json:"sender"`
	Round     uint64   `json:"round"`
	BidAmount sdk.Coin `json:"bid_amount"`
}

func (MsgBid) MsgType() string { return "auction/bid" }

// MsgInstantiateContract instantiates a contract from a code template at a
// deterministic address derived from the salt.
type MsgInstantiateContract struct {
	Sender string          `json:"sender"`
	Admin  string          `json:"admin,omitempty"`
	CodeID uint64          `json:"code_id"`
	Label  string          `json:"label"`
	Msg    json.RawMessage `json:"msg"`
	Funds  sdk.Coins       `json:"funds"`
	Salt   []byte          `json:"salt"`
}

func (MsgInstantiateContract) MsgType() string { return "wasm/instantiate2" }
