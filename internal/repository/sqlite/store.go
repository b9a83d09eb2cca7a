// Package sqlite implements the repository interfaces on modernc.org/sqlite.
package sqlite

import (
	"database/sql"
	"time"

	"github.com/oasis-community/opsbot/internal/repository"
)

// New wires the SQLite-backed repositories over an open handle.
func New(db *sql.DB) repository.Repositories {
	return repository.Repositories{
		Tickets:    &ticketStore{db: db},
		Deliveries: &deliveryStore{db: db},
		Ranking:    &rankingStore{db: db},
		Ping:       db.PingContext,
	}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
