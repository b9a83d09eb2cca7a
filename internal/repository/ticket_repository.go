package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oasis-community/opsbot/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Get(ctx context.Context, userID string) (*domain.Ticket, error)
	// InsertIfAbsent stores ticket unless the user already holds one. It
	// reports whether the row was written.
	InsertIfAbsent(ctx context.Context, ticket *domain.Ticket) (bool, error)
	Delete(ctx context.Context, userID string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Get(ctx context.Context, userID string) (*domain.Ticket, error) {
	const query = `SELECT user_id, channel_id, created_at FROM tickets WHERE user_id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&ticket.UserID, &ticket.ChannelID, &ticket.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) InsertIfAbsent(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	const query = `
        INSERT INTO tickets (user_id, channel_id)
        VALUES ($1, $2)
        ON CONFLICT (user_id) DO NOTHING
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query, ticket.UserID, ticket.ChannelID).Scan(&ticket.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ticketRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE user_id=$1`, userID)
	return err
}
