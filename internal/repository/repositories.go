package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories bundles the stores the services depend on.
type Repositories struct {
	Tickets    TicketRepository
	Deliveries DeliveryRepository
	Ranking    RankingRepository
	// Ping reports backend health for readiness probes.
	Ping func(ctx context.Context) error
}

// NewPostgres wires the Postgres-backed repositories.
func NewPostgres(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Tickets:    NewTicketRepository(pool),
		Deliveries: NewDeliveryRepository(pool),
		Ranking:    NewRankingRepository(pool),
		Ping:       pool.Ping,
	}
}
