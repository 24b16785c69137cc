package repository

import (
	"context"
	"database/sql"
	"time"
)

// BookingRecord is one verified booking, kept for audit.
type BookingRecord struct {
	ID           int64     `json:"id"`
	Account      string    `json:"account"`
	Plate        string    `json:"plate"`
	SessionID    string    `json:"session_id"`
	Lot          int       `json:"lot"`
	StartTime    time.Time `json:"start_time"`
	ExpireTime   time.Time `json:"expire_time"`
	CostAmount   float64   `json:"cost_amount"`
	CostCurrency string    `json:"cost_currency"`
	Renewed      bool      `json:"renewed"`
	CreatedAt    time.Time `json:"created_at"`
}

// HistoryRepository persists booking records.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository returns repository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// EnsureSchema creates the bookings table when missing.
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS bookings (
			id BIGSERIAL PRIMARY KEY,
			account TEXT NOT NULL,
			plate TEXT NOT NULL,
			session_id TEXT NOT NULL,
			lot INT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			expire_time TIMESTAMPTZ NOT NULL,
			cost_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			cost_currency TEXT NOT NULL DEFAULT '',
			renewed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// SaveBooking inserts a record and fills its id/created_at.
func (r *HistoryRepository) SaveBooking(ctx context.Context, record *BookingRecord) error {
	const query = `
		INSERT INTO bookings (account, plate, session_id, lot, start_time, expire_time, cost_amount, cost_currency, renewed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		record.Account,
		record.Plate,
		record.SessionID,
		record.Lot,
		record.StartTime,
		record.ExpireTime,
		record.CostAmount,
		record.CostCurrency,
		record.Renewed,
	).Scan(&record.ID, &record.CreatedAt)
}

// ListByAccount returns the last N bookings for an account.
func (r *HistoryRepository) ListByAccount(ctx context.Context, account string, limit int) ([]BookingRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, account, plate, session_id, lot, start_time, expire_time, cost_amount, cost_currency, renewed, created_at
		FROM bookings
		WHERE account = $1
		ORDER BY start_time DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []BookingRecord
	for rows.Next() {
		var rec BookingRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Account,
			&rec.Plate,
			&rec.SessionID,
			&rec.Lot,
			&rec.StartTime,
			&rec.ExpireTime,
			&rec.CostAmount,
			&rec.CostCurrency,
			&rec.Renewed,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
