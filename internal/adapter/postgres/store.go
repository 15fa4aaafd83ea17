// Package postgres persists subscription records to PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/couchcryptid/weather-alerts/internal/subscription"
	_ "github.com/lib/pq" // postgres driver
)

const schema = `CREATE TABLE IF NOT EXISTS subscriptions (
	id         TEXT PRIMARY KEY,
	method     TEXT NOT NULL,
	phone      TEXT,
	email      TEXT NOT NULL,
	also_email BOOLEAN NOT NULL DEFAULT FALSE,
	alt_email  TEXT,
	city       TEXT,
	country    TEXT,
	lat        DOUBLE PRECISION,
	lon        DOUBLE PRECISION,
	ts         TIMESTAMPTZ NOT NULL
)`

const insertSubscription = `INSERT INTO subscriptions
	(id, method, phone, email, also_email, alt_email, city, country, lat, lon, ts)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const listSubscriptions = `SELECT id, method, phone, email, also_email, alt_email, city, country, lat, lon, ts
	FROM subscriptions ORDER BY ts, id`

// Store implements subscription.Store on a *sql.DB.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// EnsureSchema creates the subscriptions table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create subscriptions table: %w", err)
	}
	return nil
}

// Save inserts r.
func (s *Store) Save(ctx context.Context, r subscription.Record) error {
	_, err := s.db.ExecContext(ctx, insertSubscription, insertArgs(r)...)
	if err != nil {
		return fmt.Errorf("insert subscription %s: %w", r.ID, err)
	}
	return nil
}

// List returns every stored record in insertion-time order.
func (s *Store) List(ctx context.Context) ([]subscription.Record, error) {
	rows, err := s.db.QueryContext(ctx, listSubscriptions)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []subscription.Record
	for rows.Next() {
		var (
			r                              subscription.Record
			phone, altEmail, city, country sql.NullString
			lat, lon                       sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Method, &phone, &r.Email, &r.AlsoEmail, &altEmail, &city, &country, &lat, &lon, &r.TS); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		r.Phone, r.AltEmail, r.City, r.Country = phone.String, altEmail.String, city.String, country.String
		r.Lat, r.Lon = floatPtr(lat), floatPtr(lon)
		r.TS = r.TS.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func insertArgs(r subscription.Record) []any {
	return []any{
		r.ID,
		r.Method,
		nullString(r.Phone),
		r.Email,
		r.AlsoEmail,
		nullString(r.AltEmail),
		nullString(r.City),
		nullString(r.Country),
		nullFloat(r.Lat),
		nullFloat(r.Lon),
		r.TS.UTC(),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

var _ subscription.Store = (*Store)(nil)
