package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/oasis-community/opsbot/internal/domain"
)

type rankingStore struct {
	db *sql.DB
}

func (s *rankingStore) Get(ctx context.Context) (domain.RankingPointer, error) {
	var (
		p                domain.RankingPointer
		channel, message sql.NullString
		updated          int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT channel_id, message_id, updated_at FROM ranking_pointer WHERE id=1`,
	).Scan(&channel, &message, &updated)
	if err != nil {
		return p, err
	}
	p.ChannelID = nullString(channel)
	p.MessageID = nullString(message)
	p.UpdatedAt = fromMillis(updated)
	return p, nil
}

func (s *rankingStore) Activate(ctx context.Context, channelID, messageID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ranking_pointer SET channel_id=?, message_id=?, updated_at=?
         WHERE id=1 AND (channel_id IS NULL OR message_id IS NULL)`,
		channelID, messageID, toMillis(time.Now()))
	return changedOne(res, err)
}

func (s *rankingStore) ClearIfMatches(ctx context.Context, channelID, messageID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ranking_pointer SET channel_id=NULL, message_id=NULL, updated_at=?
         WHERE id=1 AND channel_id=? AND message_id=?`,
		toMillis(time.Now()), channelID, messageID)
	return changedOne(res, err)
}

func (s *rankingStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ranking_pointer SET channel_id=NULL, message_id=NULL, updated_at=? WHERE id=1`,
		toMillis(time.Now()))
	return err
}

func changedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
