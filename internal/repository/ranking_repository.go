package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oasis-community/opsbot/internal/domain"
)

// RankingRepository stores the single leaderboard publication pointer.
type RankingRepository interface {
	Get(ctx context.Context) (domain.RankingPointer, error)
	// Activate sets the pointer only while it is inactive and reports whether
	// it did.
	Activate(ctx context.Context, channelID, messageID string) (bool, error)
	// ClearIfMatches clears the pointer only while it still names the given
	// record.
	ClearIfMatches(ctx context.Context, channelID, messageID string) (bool, error)
	Clear(ctx context.Context) error
}

type rankingRepository struct {
	pool *pgxpool.Pool
}

// NewRankingRepository returns a Postgres-backed implementation.
func NewRankingRepository(pool *pgxpool.Pool) RankingRepository {
	return &rankingRepository{pool: pool}
}

func (r *rankingRepository) Get(ctx context.Context) (domain.RankingPointer, error) {
	var p domain.RankingPointer
	err := r.pool.QueryRow(ctx,
		`SELECT channel_id, message_id, updated_at FROM ranking_pointer WHERE id=1`,
	).Scan(&p.ChannelID, &p.MessageID, &p.UpdatedAt)
	return p, err
}

func (r *rankingRepository) Activate(ctx context.Context, channelID, messageID string) (bool, error) {
	const query = `
        UPDATE ranking_pointer SET channel_id=$1, message_id=$2, updated_at=NOW()
        WHERE id=1 AND (channel_id IS NULL OR message_id IS NULL)`
	cmd, err := r.pool.Exec(ctx, query, channelID, messageID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *rankingRepository) ClearIfMatches(ctx context.Context, channelID, messageID string) (bool, error) {
	const query = `
        UPDATE ranking_pointer SET channel_id=NULL, message_id=NULL, updated_at=NOW()
        WHERE id=1 AND channel_id=$1 AND message_id=$2`
	cmd, err := r.pool.Exec(ctx, query, channelID, messageID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *rankingRepository) Clear(ctx context.Context) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE ranking_pointer SET channel_id=NULL, message_id=NULL, updated_at=NOW() WHERE id=1`)
	return err
}
