package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/repository"
)

const deliveryColumns = `id, user_id, item, quantity, evidence_url, private_message_id,
    public_channel_id, public_message_id, status, decided_by, decided_at, submitted_at`

type deliveryStore struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *deliveryStore) CreatePending(ctx context.Context, delivery *domain.Delivery) error {
	now := toMillis(time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (user_id, item, quantity, evidence_url, status, submitted_at)
         VALUES (?, ?, ?, ?, 'pending', ?)`,
		delivery.UserID, delivery.Item, delivery.Quantity, delivery.EvidenceURL, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	delivery.ID = id
	delivery.Status = domain.DeliveryStatusPending
	delivery.SubmittedAt = fromMillis(now)
	return nil
}

func (s *deliveryStore) AttachPrivateNotification(ctx context.Context, id int64, messageID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE deliveries SET private_message_id=? WHERE id=?`, messageID, id)
	return affectedOne(res, err)
}

func (s *deliveryStore) AttachPublicNotification(ctx context.Context, id int64, channelID, messageID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deliveries SET public_channel_id=?, public_message_id=? WHERE id=?`,
		channelID, messageID, id)
	return affectedOne(res, err)
}

func (s *deliveryStore) GetByID(ctx context.Context, id int64) (*domain.Delivery, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id=?`, id)
	delivery, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return delivery, err
}

func (s *deliveryStore) SetStatus(ctx context.Context, id int64, status domain.DeliveryStatus, actorID string) (*domain.Delivery, error) {
	if !status.Terminal() {
		return nil, repository.ErrInvalidTransition
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE deliveries SET status=?, decided_by=?, decided_at=?
         WHERE id=? AND status='pending'`,
		string(status), actorID, toMillis(time.Now()), id)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, repository.ErrAlreadyDecided
	}
	return current, nil
}

func (s *deliveryStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Delivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE user_id=? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []domain.Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *delivery)
	}
	return deliveries, rows.Err()
}

func (s *deliveryStore) SumApprovedByUser(ctx context.Context, limit int) ([]domain.Standing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, SUM(quantity) AS total
         FROM deliveries
         WHERE status='approved'
         GROUP BY user_id
         ORDER BY total DESC, user_id
         LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var standings []domain.Standing
	for rows.Next() {
		var st domain.Standing
		if err := rows.Scan(&st.UserID, &st.Total); err != nil {
			return nil, err
		}
		standings = append(standings, st)
	}
	return standings, rows.Err()
}

func scanDelivery(row rowScanner) (*domain.Delivery, error) {
	var (
		d           domain.Delivery
		status      string
		privateMsg  sql.NullString
		publicChan  sql.NullString
		publicMsg   sql.NullString
		decidedBy   sql.NullString
		decidedAt   sql.NullInt64
		submittedAt int64
	)
	if err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Item,
		&d.Quantity,
		&d.EvidenceURL,
		&privateMsg,
		&publicChan,
		&publicMsg,
		&status,
		&decidedBy,
		&decidedAt,
		&submittedAt,
	); err != nil {
		return nil, err
	}
	d.Status = domain.DeliveryStatus(status)
	d.PrivateMessageID = nullString(privateMsg)
	d.PublicChannelID = nullString(publicChan)
	d.PublicMessageID = nullString(publicMsg)
	d.DecidedBy = nullString(decidedBy)
	if decidedAt.Valid {
		t := fromMillis(decidedAt.Int64)
		d.DecidedAt = &t
	}
	d.SubmittedAt = fromMillis(submittedAt)
	return &d, nil
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
