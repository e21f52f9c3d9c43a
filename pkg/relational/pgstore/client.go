package pgstore

import (
	"context"
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/relational"
)

//go:embed migrations
var migrationsFS embed.FS

// Client is the networked relational.Store backend.
type Client struct {
	db  *stdsql.DB
	cfg Config
}

var _ relational.Store = (*Client)(nil)

// New opens (or joins) the shared pool for cfg and applies pending
// migrations before returning.
func New(ctx context.Context, cfg Config) (*Client, error) {
	db, err := acquirePool(cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = releasePool(cfg)
		return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = releasePool(cfg)
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Client{db: db, cfg: cfg}, nil
}

func runMigrations(db *stdsql.DB, dbName string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres migrate driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	// Do not call m.Close(): it closes the database driver, which closes
	// the shared *sql.DB passed via postgres.WithInstance(), breaking
	// every other Client sharing this pool. Close only the source.
	return src.Close()
}

// Close releases this Client's reference to the shared pool.
func (c *Client) Close() error {
	return releasePool(c.cfg)
}

func (c *Client) SaveMemory(ctx context.Context, category, topic, content string) (*relational.SavedMemory, error) {
	now := time.Now().UTC()
	row := c.db.QueryRowContext(ctx, `
		INSERT INTO memories (date, category, topic, content, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'mcp', $5, $5)
		RETURNING id, created_at`,
		now, category, topic, content, now,
	)

	var id int64
	var createdAt time.Time
	if err := row.Scan(&id, &createdAt); err != nil {
		return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}

	return &relational.SavedMemory{ID: id, Date: now, CreatedAt: createdAt}, nil
}

func (c *Client) GetByID(ctx context.Context, id int64) (*models.Memory, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, date, category, topic, content, source, created_at, updated_at
		FROM memories WHERE id = $1`, id)

	m, err := scanMemory(row)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	return m, nil
}

func (c *Client) Update(ctx context.Context, id int64, fields relational.UpdateFields) (bool, error) {
	sets := []string{"updated_at = now()"}
	args := []any{}
	argN := 1

	add := func(col string, val *string) {
		if val == nil {
			return
		}
		argN++
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, *val)
	}
	add("topic", fields.Topic)
	add("content", fields.Content)
	add("category", fields.Category)

	if len(args) == 0 {
		// Nothing to change; still confirm the row exists.
		m, err := c.GetByID(ctx, id)
		return m != nil, err
	}

	query := fmt.Sprintf("UPDATE memories SET %s WHERE id = $1", joinComma(sets))
	res, err := c.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return false, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *Client) Move(ctx context.Context, id int64, newCategory string) (bool, error) {
	if newCategory == "" {
		return false, relational.NewValidationError("new_category", "must not be empty")
	}
	return c.Update(ctx, id, relational.UpdateFields{Category: &newCategory})
}

func (c *Client) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *Client) SearchBasic(ctx context.Context, query string, categories []string) ([]models.Memory, error) {
	sqlq := `
		SELECT id, date, category, topic, content, source, created_at, updated_at
		FROM memories
		WHERE (topic ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%')`
	args := []any{query}

	if len(categories) > 0 {
		sqlq += " AND category = ANY($2)"
		args = append(args, categories)
	}
	sqlq += " ORDER BY created_at DESC"

	return c.queryMemories(ctx, sqlq, args...)
}

func (c *Client) Recent(ctx context.Context, limit int) ([]models.Memory, error) {
	return c.queryMemories(ctx, `
		SELECT id, date, category, topic, content, source, created_at, updated_at
		FROM memories ORDER BY created_at DESC LIMIT $1`, limit)
}

func (c *Client) ByCategory(ctx context.Context, category string, limit int) ([]models.Memory, error) {
	return c.queryMemories(ctx, `
		SELECT id, date, category, topic, content, source, created_at, updated_at
		FROM memories WHERE category = $1 ORDER BY created_at DESC LIMIT $2`, category, limit)
}

func (c *Client) ListCategories(ctx context.Context) ([]models.CategoryCount, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT category, count(*) FROM memories GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var out []models.CategoryCount
	for rows.Next() {
		var cc models.CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

func (c *Client) AddToShortMemory(ctx context.Context, capacity int, m models.Memory) error {
	if _, err := c.SaveMemory(ctx, models.CategoryShort, m.Topic, m.Content); err != nil {
		return err
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id FROM memories WHERE category = $1 ORDER BY created_at DESC`, models.CategoryShort)
	if err != nil {
		return fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, stale := range ids[min(capacity, len(ids)):] {
		if _, err := c.Delete(ctx, stale); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ListShortMemory(ctx context.Context, limit int) ([]models.Memory, error) {
	return c.ByCategory(ctx, models.CategoryShort, limit)
}

func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	counts, err := c.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	stats := &models.Stats{ByCategory: map[string]int{}, DBType: "postgres"}
	for _, cc := range counts {
		stats.ByCategory[cc.Category] = cc.Count
		stats.Total += cc.Count
	}
	return stats, nil
}

func (c *Client) Health(ctx context.Context) (*models.Health, error) {
	if err := c.db.PingContext(ctx); err != nil {
		return &models.Health{OK: false, Detail: err.Error()}, nil
	}
	return &models.Health{OK: true, Detail: "postgres reachable"}, nil
}

func (c *Client) queryMemories(ctx context.Context, query string, args ...any) ([]models.Memory, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var out []models.Memory
	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (*models.Memory, error) {
	return scanMemoryRows(row)
}

func scanMemoryRows(row scanner) (*models.Memory, error) {
	var m models.Memory
	if err := row.Scan(&m.ID, &m.Date, &m.Category, &m.Topic, &m.Content, &m.Source, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
