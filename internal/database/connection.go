package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // PostgreSQL driver
	"github.com/schoolhub/booking-backend/internal/config"
)

// Pinger is what the health endpoint needs from a store
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PostgresDB wraps the sqlx handle shared by the repositories
type PostgresDB struct {
	*sqlx.DB
}

// NewConnection creates a new database connection
func NewConnection(cfg config.DatabaseConfig) (*PostgresDB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	connectionURL, err := connectionString(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect("postgres", connectionURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}

// connectionString prepares a DSN for lib/pq. Transaction-mode poolers such as
// Supavisor drop named prepared statements between transactions, so parameters
// are sent inline with binary_parameters. The pgx-only prefer_simple_protocol
// is removed because lib/pq would forward it to the server as a runtime parameter.
func connectionString(raw string) (string, error) {
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid database URL: %w", err)
		}
		q := u.Query()
		q.Del("prefer_simple_protocol")
		if q.Get("binary_parameters") == "" {
			q.Set("binary_parameters", "yes")
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	// key=value form
	dsn := strings.TrimSpace(simpleProtocolSetting.ReplaceAllString(raw, ""))
	if !strings.Contains(dsn, "binary_parameters=") {
		dsn += " binary_parameters=yes"
	}
	return dsn, nil
}

var simpleProtocolSetting = regexp.MustCompile(`\s*prefer_simple_protocol=\S*`)

// Unique index names used to tell constraint violations apart
const (
	activeSlotIndex     = "bookings_active_slot_idx"
	activeStudentIndex  = "bookings_active_student_idx"
	resourceKeyIndex    = "resources_active_key_idx"
	hostelNameIndex     = "hostels_school_name_idx"
	uniqueViolationCode = "23505"
)

// uniqueViolation returns the violated constraint name, if err is a unique violation
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
		return pqErr.Constraint, true
	}
	return "", false
}
