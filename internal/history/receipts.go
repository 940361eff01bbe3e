package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// BidReceipt records one bid attempt, whether or not a bid went out.
type BidReceipt struct {
	ReceiptID    int64
	CreatedAt    time.Time
	AuctionRound uint64
	Caller       string
	Action       string
	Reason       string
	BidAmount    *sdkmath.Int
	BasketValue  *sdkmath.Int
}

// SettlementReceipt records one settled round.
type SettlementReceipt struct {
	ReceiptID            int64
	CreatedAt            time.Time
	AuctionRound         uint64
	Caller               string
	AuctionWinner        string
	AuctionWinningBid    sdkmath.Int
	PoolWon              bool
	TreasureChestAddress string
}

// RecordBidAttempt persists one bid-attempt receipt.
func (s *Store) RecordBidAttempt(ctx context.Context, r BidReceipt) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	var bidAmount, basketValue sql.NullString
	if r.BidAmount != nil {
		bidAmount = sql.NullString{String: r.BidAmount.String(), Valid: true}
	}
	if r.BasketValue != nil {
		basketValue = sql.NullString{String: r.BasketValue.String(), Valid: true}
	}

	query := `
		INSERT INTO bid_receipts (auction_round, caller, action, reason, bid_amount, basket_value)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		r.AuctionRound, r.Caller, r.Action, sql.NullString{String: r.Reason, Valid: r.Reason != ""},
		bidAmount, basketValue)
	if err != nil {
		return fmt.Errorf("failed to insert bid receipt: %w", err)
	}
	return nil
}

// RecordSettlement persists one settlement receipt.
func (s *Store) RecordSettlement(ctx context.Context, r SettlementReceipt) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO settlement_receipts
			(auction_round, caller, auction_winner, auction_winning_bid, pool_won, treasure_chest_address)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		r.AuctionRound, r.Caller, r.AuctionWinner, r.AuctionWinningBid.String(), r.PoolWon,
		sql.NullString{String: r.TreasureChestAddress, Valid: r.TreasureChestAddress != ""})
	if err != nil {
		return fmt.Errorf("failed to insert settlement receipt: %w", err)
	}

	log.Debug().
		Uint64("auction_round", r.AuctionRound).
		Bool("pool_won", r.PoolWon).
		Msg("Settlement receipt recorded")
	return nil
}

// RecentSettlements returns the most recent settlement receipts, newest first.
func (s *Store) RecentSettlements(ctx context.Context, limit int) ([]SettlementReceipt, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT receipt_id, created_at, auction_round, caller, auction_winner,
		       auction_winning_bid, pool_won, COALESCE(treasure_chest_address, '')
		FROM settlement_receipts
		ORDER BY receipt_id DESC
		LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement receipts: %w", err)
	}
	defer rows.Close()

	var receipts []SettlementReceipt
	for rows.Next() {
		var r SettlementReceipt
		var winningBid string
		if err := rows.Scan(&r.ReceiptID, &r.CreatedAt, &r.AuctionRound, &r.Caller,
			&r.AuctionWinner, &winningBid, &r.PoolWon, &r.TreasureChestAddress); err != nil {
			return nil, fmt.Errorf("failed to scan settlement receipt: %w", err)
		}
		bid, ok := sdkmath.NewIntFromString(winningBid)
		if !ok {
			return nil, fmt.Errorf("invalid winning bid amount in receipt %d: %s", r.ReceiptID, winningBid)
		}
		r.AuctionWinningBid = bid
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// RecentBidAttempts returns the most recent bid-attempt receipts, newest first.
func (s *Store) RecentBidAttempts(ctx context.Context, limit int) ([]BidReceipt, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT receipt_id, created_at, auction_round, caller, action,
		       COALESCE(reason, ''), bid_amount, basket_value
		FROM bid_receipts
		ORDER BY receipt_id DESC
		LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bid receipts: %w", err)
	}
	defer rows.Close()

	var receipts []BidReceipt
	for rows.Next() {
		var r BidReceipt
		var bidAmount, basketValue sql.NullString
		if err := rows.Scan(&r.ReceiptID, &r.CreatedAt, &r.AuctionRound, &r.Caller,
			&r.Action, &r.Reason, &bidAmount, &basketValue); err != nil {
			return nil, fmt.Errorf("failed to scan bid receipt: %w", err)
		}
		if bidAmount.Valid {
			v, ok := sdkmath.NewIntFromString(bidAmount.String)
			if !ok {
				return nil, fmt.Errorf("invalid bid amount in receipt %d: %s", r.ReceiptID, bidAmount.String)
			}
			r.BidAmount = &v
		}
		if basketValue.Valid {
			v, ok := sdkmath.NewIntFromString(basketValue.String)
			if !ok {
				return nil, fmt.Errorf("invalid basket value in receipt %d: %s", r.ReceiptID, basketValue.String)
			}
			r.BasketValue = &v
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}
