package pgstore

import (
	stdsql "database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// sharedPool is one process-wide *sql.DB keyed by endpoint, kept alive as
// long as at least one Client references it. Opening N adapters against
// the same endpoint reuses one pool; the underlying connection is closed
// only once the last reference is released. This avoids double-close on
// hot reload or test teardown when multiple Store values target the same
// database.
type sharedPool struct {
	mu   sync.Mutex
	db   *stdsql.DB
	refs int
}

var (
	poolsMu sync.Mutex
	pools   = map[string]*sharedPool{}
)

// acquirePool returns the shared *sql.DB for cfg, opening it on first use.
func acquirePool(cfg Config) (*stdsql.DB, error) {
	poolsMu.Lock()
	p, ok := pools[cfg.key()]
	if !ok {
		p = &sharedPool{}
		pools[cfg.key()] = p
	}
	poolsMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		db, err := stdsql.Open("pgx", cfg.dsn())
		if err != nil {
			return nil, fmt.Errorf("open postgres pool: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
		p.db = db
	}
	p.refs++
	return p.db, nil
}

// releasePool decrements the refcount for cfg's endpoint, closing the
// underlying *sql.DB once no Client references it.
func releasePool(cfg Config) error {
	key := cfg.key()

	poolsMu.Lock()
	p, ok := pools[key]
	poolsMu.Unlock()
	if !ok {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.refs--
	if p.refs > 0 {
		return nil
	}

	var err error
	if p.db != nil {
		err = p.db.Close()
		p.db = nil
	}

	poolsMu.Lock()
	delete(pools, key)
	poolsMu.Unlock()

	return err
}
