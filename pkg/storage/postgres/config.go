package postgres

import "time"

// Config holds the run store's connection and startup settings.
type Config struct {
	// DSN is the PostgreSQL connection string, e.g.
	// "postgres://causeway:secret@db:5432/causeway?sslmode=require".
	// Required; there is no usable default for a run store.
	DSN string

	// MaxConns caps the pool. Run persistence is one short insert per
	// analysis, so the pool stays small (default: 10).
	MaxConns int32

	// MinConns keeps warm connections for the read endpoints
	// (default: 2).
	MinConns int32

	// MaxConnLifetime recycles connections so long-lived pools survive
	// server-side restarts and failovers (default: 30 minutes).
	MaxConnLifetime time.Duration

	// ConnectTimeout bounds each dial attempt (default: 5 seconds).
	ConnectTimeout time.Duration

	// MigrateOnStart applies the embedded schema migrations before the
	// store accepts traffic.
	MigrateOnStart bool
}

func (c *Config) applyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}
