// Package feedback persists customer ratings and comments collected at the
// end of the conversation flow.
package feedback

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

// DB is the pgx query surface the store needs, satisfied by *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes feedback rows. It implements conversation.FeedbackStore.
type Store struct {
	db     DB
	logger *logging.Logger
}

// NewStore wraps a database handle.
func NewStore(db DB, logger *logging.Logger) *Store {
	if db == nil {
		panic("feedback: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger}
}

// Save stores one rating with its optional comment.
func (s *Store) Save(ctx context.Context, customerPhone, customerName string, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("feedback: rating %d out of range", rating)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO feedback (customer_phone, customer_name, rating, comment)
		VALUES ($1, $2, $3, $4)`,
		customerPhone, customerName, rating, comment,
	)
	if err != nil {
		return fmt.Errorf("feedback: save: %w", err)
	}
	return nil
}
