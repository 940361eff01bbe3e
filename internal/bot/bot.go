// Package bot drives the bid rule on a schedule: it values the tracked
// basket through a price feed and submits a bid attempt as a whitelisted
// principal, so the pool keeps competing without anyone calling the API.
package bot

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/openpool/pam/internal/gateway"
	"github.com/openpool/pam/internal/history"
	"github.com/openpool/pam/internal/ledger"
	"github.com/openpool/pam/internal/logger"
	"github.com/openpool/pam/internal/pool"
)

var botLogger = logger.GetForComponent("bid_bot")

// Bot schedules recurring bid attempts.
type Bot struct {
	cron       *cron.Cron
	pool       *pool.Pool
	gateway    gateway.Querier
	valuer     Valuer
	dispatcher ledger.Dispatcher
	history    *history.Store // may be nil
	address    string
	schedule   string
}

// Config holds the dependencies for creating a Bot.
type Config struct {
	Pool       *pool.Pool
	Gateway    gateway.Querier
	Valuer     Valuer
	Dispatcher ledger.Dispatcher
	History    *history.Store
	// Address is the whitelisted account the bot acts as.
	Address string
	// Schedule is a six-field cron expression with seconds.
	Schedule string
}

// New creates a Bot after validating its dependencies.
func New(cfg Config) (*Bot, error) {
	if cfg.Pool == nil {
		return nil, errors.New("pool engine cannot be nil")
	}
	if cfg.Gateway == nil {
		return nil, errors.New("auction gateway cannot be nil")
	}
	if cfg.Valuer == nil {
		return nil, errors.New("basket valuer cannot be nil")
	}
	if cfg.Address == "" {
		return nil, errors.New("bot address cannot be empty")
	}
	if cfg.Schedule == "" {
		return nil, errors.New("bot schedule cannot be empty")
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = ledger.NopDispatcher{}
	}

	return &Bot{
		cron:       cron.New(cron.WithSeconds()),
		pool:       cfg.Pool,
		gateway:    cfg.Gateway,
		valuer:     cfg.Valuer,
		dispatcher: dispatcher,
		history:    cfg.History,
		address:    cfg.Address,
		schedule:   cfg.Schedule,
	}, nil
}

// Start registers the bid task and starts the scheduler.
func (b *Bot) Start() error {
	if _, err := b.cron.AddFunc(b.schedule, func() {
		if err := b.RunBidAttempt(context.Background()); err != nil {
			botLogger.Error().Err(err).Msg("Scheduled bid attempt failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to register bid task: %w", err)
	}

	b.cron.Start()
	botLogger.Info().Str("schedule", b.schedule).Msg("Bid bot started")
	return nil
}

// Stop stops the scheduler and waits for a running task to finish.
func (b *Bot) Stop() {
	ctx := b.cron.Stop()
	<-ctx.Done()
	botLogger.Info().Msg("Bid bot stopped")
}

// RunBidAttempt executes one bid attempt end to end: value the tracked
// basket, run the decision rule, queue whatever message came out, and leave
// a receipt. Also called directly for a manual trigger.
func (b *Bot) RunBidAttempt(ctx context.Context) error {
	auction, err := b.pool.GetUnsettledAuction()
	if err != nil {
		return fmt.Errorf("failed to load tracked auction: %w", err)
	}

	if auction.Basket.IsZero() {
		botLogger.Info().
			Uint64("auction_round", auction.AuctionRound).
			Msg("Tracked basket is empty, skipping bid attempt")
		return nil
	}

	basketValue, err := b.valuer.BasketValue(ctx, auction.Basket)
	if err != nil {
		return fmt.Errorf("basket valuation failed: %w", err)
	}

	height, err := b.gateway.LatestHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to query latest height: %w", err)
	}

	res, err := b.pool.TryBid(ctx, pool.CallContext{Caller: b.address, Height: height},
		auction.AuctionRound, basketValue)
	if err != nil {
		// A round mismatch just means settlement is due; the next run after
		// SettleAuction will target the fresh round.
		var roundErr pool.InvalidAuctionRoundError
		if errors.As(err, &roundErr) {
			botLogger.Warn().
				Uint64("tracked_round", roundErr.AuctionRound).
				Uint64("current_round", roundErr.CurrentAuctionRound).
				Msg("Tracked round has rolled over, waiting for settlement")
			return nil
		}
		return err
	}

	if len(res.Messages) > 0 {
		batchID := uuid.NewString()
		if err := b.dispatcher.Dispatch(ctx, batchID, res.Messages); err != nil {
			return fmt.Errorf("failed to queue bid message: %w", err)
		}
		botLogger.Info().
			Str("batch_id", batchID).
			Uint64("auction_round", auction.AuctionRound).
			Msg("Bid queued")
	}

	b.recordReceipt(ctx, auction.AuctionRound, basketValue, res)
	return nil
}

func (b *Bot) recordReceipt(ctx context.Context, round uint64, basketValue sdkmath.Int, res *pool.Result) {
	if b.history == nil {
		return
	}

	receipt := history.BidReceipt{
		AuctionRound: round,
		Caller:       b.address,
		Action:       res.Action,
		BasketValue:  &basketValue,
	}
	for _, attr := range res.Attributes {
		switch attr.Key {
		case "reason":
			receipt.Reason = attr.Value
		case "amount":
			if v, ok := sdkmath.NewIntFromString(attr.Value); ok {
				receipt.BidAmount = &v
			}
		}
	}
	if err := b.history.RecordBidAttempt(ctx, receipt); err != nil {
		botLogger.Error().Err(err).Msg("Failed to record bid receipt")
	}
}
