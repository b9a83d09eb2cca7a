package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/repository"
)

type ticketStore struct {
	db *sql.DB
}

func (s *ticketStore) Get(ctx context.Context, userID string) (*domain.Ticket, error) {
	var (
		ticket  domain.Ticket
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, channel_id, created_at FROM tickets WHERE user_id=?`, userID,
	).Scan(&ticket.UserID, &ticket.ChannelID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ticket.CreatedAt = fromMillis(created)
	return &ticket, nil
}

func (s *ticketStore) InsertIfAbsent(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (user_id, channel_id, created_at) VALUES (?, ?, ?)
         ON CONFLICT (user_id) DO NOTHING`,
		ticket.UserID, ticket.ChannelID, toMillis(now))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	ticket.CreatedAt = fromMillis(toMillis(now))
	return true, nil
}

func (s *ticketStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE user_id=?`, userID)
	return err
}
