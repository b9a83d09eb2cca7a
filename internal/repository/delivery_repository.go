package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oasis-community/opsbot/internal/domain"
)

// DeliveryRepository persists delivery records. Records are never deleted.
type DeliveryRepository interface {
	CreatePending(ctx context.Context, delivery *domain.Delivery) error
	AttachPrivateNotification(ctx context.Context, id int64, messageID string) error
	AttachPublicNotification(ctx context.Context, id int64, channelID, messageID string) error
	GetByID(ctx context.Context, id int64) (*domain.Delivery, error)
	// SetStatus moves a pending delivery to a terminal status and returns the
	// updated record. Exactly one caller wins per delivery.
	SetStatus(ctx context.Context, id int64, status domain.DeliveryStatus, actorID string) (*domain.Delivery, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Delivery, error)
	SumApprovedByUser(ctx context.Context, limit int) ([]domain.Standing, error)
}

type deliveryRepository struct {
	pool *pgxpool.Pool
}

// NewDeliveryRepository returns a Postgres-backed implementation.
func NewDeliveryRepository(pool *pgxpool.Pool) DeliveryRepository {
	return &deliveryRepository{pool: pool}
}

const deliveryColumns = `id, user_id, item, quantity, evidence_url, private_message_id,
               public_channel_id, public_message_id, status, decided_by, decided_at, submitted_at`

func (r *deliveryRepository) CreatePending(ctx context.Context, delivery *domain.Delivery) error {
	const query = `
        INSERT INTO deliveries (user_id, item, quantity, evidence_url, status)
        VALUES ($1, $2, $3, $4, 'pending')
        RETURNING id, status, submitted_at`
	return r.pool.QueryRow(ctx, query,
		delivery.UserID,
		delivery.Item,
		delivery.Quantity,
		delivery.EvidenceURL,
	).Scan(&delivery.ID, &delivery.Status, &delivery.SubmittedAt)
}

func (r *deliveryRepository) AttachPrivateNotification(ctx context.Context, id int64, messageID string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE deliveries SET private_message_id=$1 WHERE id=$2`, messageID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *deliveryRepository) AttachPublicNotification(ctx context.Context, id int64, channelID, messageID string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE deliveries SET public_channel_id=$1, public_message_id=$2 WHERE id=$3`,
		channelID, messageID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *deliveryRepository) GetByID(ctx context.Context, id int64) (*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id=$1`
	delivery, err := scanDelivery(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return delivery, err
}

func (r *deliveryRepository) SetStatus(ctx context.Context, id int64, status domain.DeliveryStatus, actorID string) (*domain.Delivery, error) {
	if !status.Terminal() {
		return nil, ErrInvalidTransition
	}
	query := `
        UPDATE deliveries SET status=$1, decided_by=$2, decided_at=NOW()
        WHERE id=$3 AND status='pending'
        RETURNING ` + deliveryColumns
	delivery, err := scanDelivery(r.pool.QueryRow(ctx, query, status, actorID, id))
	if err == nil {
		return delivery, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deliveries WHERE id=$1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrAlreadyDecided
}

func (r *deliveryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE user_id=$1 ORDER BY id DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userID, limit)
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

func (r *deliveryRepository) SumApprovedByUser(ctx context.Context, limit int) ([]domain.Standing, error) {
	const query = `
        SELECT user_id, SUM(quantity)::BIGINT AS total
        FROM deliveries
        WHERE status='approved'
        GROUP BY user_id
        ORDER BY total DESC, user_id
        LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var standings []domain.Standing
	for rows.Next() {
		var s domain.Standing
		if err := rows.Scan(&s.UserID, &s.Total); err != nil {
			return nil, err
		}
		standings = append(standings, s)
	}
	return standings, rows.Err()
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	if err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Item,
		&d.Quantity,
		&d.EvidenceURL,
		&d.PrivateMessageID,
		&d.PublicChannelID,
		&d.PublicMessageID,
		&d.Status,
		&d.DecidedBy,
		&d.DecidedAt,
		&d.SubmittedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}
