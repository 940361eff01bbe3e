package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openpool/pam/internal/ledger"
)

// OutboxMessage is one persisted outbound ledger message awaiting delivery.
type OutboxMessage struct {
	MessageID  int64
	CreatedAt  time.Time
	BatchID    string
	BatchIndex int
	MsgType    string
	Payload    json.RawMessage
}

// OutboxDispatcher persists outbound message batches instead of sending them
// directly. A relayer process drains the table, signs, and broadcasts; the
// pool's state commit and the batch insert stay decoupled but the insert is
// atomic per batch.
type OutboxDispatcher struct {
	store *Store
}

// NewOutboxDispatcher creates a dispatcher backed by the history store.
func NewOutboxDispatcher(store *Store) *OutboxDispatcher {
	return &OutboxDispatcher{store: store}
}

// Dispatch writes the whole batch in one database transaction.
func (d *OutboxDispatcher) Dispatch(ctx context.Context, batchID string, msgs []ledger.Msg) error {
	if len(msgs) == 0 {
		return nil
	}
	if d.store == nil || d.store.db == nil {
		return fmt.Errorf("outbox database not initialized")
	}

	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin outbox transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Str("batch_id", batchID).Msg("Error rolling back outbox transaction")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outbox_messages (batch_id, batch_index, msg_type, payload)
		VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("failed to prepare outbox insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range msgs {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal outbox message %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, batchID, i, msg.MsgType(), payload); err != nil {
			return fmt.Errorf("failed to insert outbox message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outbox transaction: %w", err)
	}
	committed = true

	log.Info().
		Str("batch_id", batchID).
		Int("message_count", len(msgs)).
		Msg("Outbound message batch queued")
	return nil
}

// PendingMessages returns undelivered outbox messages in insertion order.
func (s *Store) PendingMessages(ctx context.Context, limit int) ([]OutboxMessage, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT message_id, created_at, batch_id, batch_index, msg_type, payload
		FROM outbox_messages
		WHERE delivered_at IS NULL
		ORDER BY message_id ASC
		LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outbox messages: %w", err)
	}
	defer rows.Close()

	var msgs []OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		if err := rows.Scan(&m.MessageID, &m.CreatedAt, &m.BatchID, &m.BatchIndex, &m.MsgType, &m.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkDelivered stamps every message of a batch as delivered.
func (s *Store) MarkDelivered(ctx context.Context, batchID string) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE outbox_messages SET delivered_at = CURRENT_TIMESTAMP WHERE batch_id = $1 AND delivered_at IS NULL`,
		batchID)
	if err != nil {
		return fmt.Errorf("failed to mark batch delivered: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		log.Warn().Str("batch_id", batchID).Msg("MarkDelivered matched no pending messages")
	}
	return nil
}
