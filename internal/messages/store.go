// Package messages keeps the audit log of inbound and outbound WhatsApp
// messages. The inbound side doubles as the idempotency barrier: the
// provider message id is unique, so a redelivered webhook inserts nothing.
package messages

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

// Direction labels which way a message travelled.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// DB is the pgx query surface the store needs, satisfied by *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists message audit rows. It implements
// conversation.InboundRecorder and conversation.OutboundRecorder.
type Store struct {
	db     DB
	logger *logging.Logger
}

// NewStore wraps a database handle.
func NewStore(db DB, logger *logging.Logger) *Store {
	if db == nil {
		panic("messages: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger}
}

// RecordInbound inserts the message keyed by the provider message id.
// Created reports whether this call stored a new row; false means the same
// provider id was seen before and the message must not be processed again.
func (s *Store) RecordInbound(ctx context.Context, customerPhone, customerName, content, providerMessageID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO messages (external_id, direction, customer_phone, customer_name, kind, content)
		VALUES ($1, $2, $3, $4, 'text', $5)
		ON CONFLICT (external_id) DO NOTHING`,
		providerMessageID, DirectionInbound, customerPhone, customerName, content,
	)
	if err != nil {
		return false, fmt.Errorf("messages: record inbound: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordOutbound inserts an audit row for a sent message.
func (s *Store) RecordOutbound(ctx context.Context, customerPhone, customerName, kind, content, providerMessageID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (external_id, direction, customer_phone, customer_name, kind, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id) DO NOTHING`,
		providerMessageID, DirectionOutbound, customerPhone, customerName, kind, content,
	)
	if err != nil {
		return fmt.Errorf("messages: record outbound: %w", err)
	}
	return nil
}
