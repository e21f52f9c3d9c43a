// Package pgstore is the networked relational backend: PostgreSQL via
// database/sql and the pgx driver, migrated with golang-migrate, and
// shared across adapters through a reference-counted process-wide pool.
package pgstore

import (
	"fmt"
	"time"
)

// Config holds the connection parameters for one PostgreSQL endpoint.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	ConnMaxIdleTime time.Duration
	ConnTimeout     time.Duration
}

// dsn builds a pgx-compatible connection string from the config fields.
func (c Config) dsn() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		c.Host, c.Port, c.User, c.Password, c.Database, sslmode, int(c.ConnTimeout.Seconds()),
	)
}

// key identifies the shared pool this config maps to: same endpoint +
// credentials share one *sql.DB regardless of how many Store values wrap it.
func (c Config) key() string {
	return fmt.Sprintf("%s:%d/%s?u=%s", c.Host, c.Port, c.Database, c.User)
}
