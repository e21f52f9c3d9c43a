// Package sqlitestore is the embedded relational backend: a single file
// on disk opened through modernc.org/sqlite, a pure-Go driver chosen so
// the embedded path never needs cgo. golang-migrate's sqlite3 source
// itself binds to the cgo sqlite3 driver, so schema upgrades here use a
// small hand-rolled forward-only runner instead (see migrate.go).
package sqlitestore

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/relational"
)

// Config holds the embedded-backend settings.
type Config struct {
	Path string
}

// Client is the embedded relational.Store backend.
type Client struct {
	db *stdsql.DB
}

var _ relational.Store = (*Client)(nil)

// New opens (creating if absent) the SQLite file at cfg.Path and applies
// pending migrations.
func New(ctx context.Context, cfg Config) (*Client, error) {
	db, err := stdsql.Open("sqlite", cfg.Path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single on-disk SQLite file does not tolerate concurrent writers
	// well; one connection avoids SQLITE_BUSY churn under our own load.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) SaveMemory(ctx context.Context, category, topic, content string) (*relational.SavedMemory, error) {
	now := time.Now().UTC()
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO memories (date, category, topic, content, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'mcp', ?, ?)`,
		now, category, topic, content, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	return &relational.SavedMemory{ID: id, Date: now, CreatedAt: now}, nil
}

func (c *Client) GetByID(ctx context.Context, id int64) (*models.Memory, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, date, category, topic, content, source, created_at, updated_at
		FROM memories WHERE id = ?`, id)

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
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	add := func(col string, val *string) {
		if val == nil {
			return
		}
		sets = append(sets, col+" = ?")
		args = append(args, *val)
	}
	add("topic", fields.Topic)
	add("content", fields.Content)
	add("category", fields.Category)

	args = append(args, id)
	query := "UPDATE memories SET " + joinComma(sets) + " WHERE id = ?"
	res, err := c.db.ExecContext(ctx, query, args...)
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
	res, err := c.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
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
		WHERE (topic LIKE '%' || ? || '%' COLLATE NOCASE OR content LIKE '%' || ? || '%' COLLATE NOCASE)`
	args := []any{query, query}

	if len(categories) > 0 {
		placeholders := make([]string, len(categories))
		for i, cat := range categories {
			placeholders[i] = "?"
			args = append(args, cat)
		}
		sqlq += " AND category IN (" + joinComma(placeholders) + ")"
	}
	sqlq += " ORDER BY created_at DESC"

	return c.queryMemories(ctx, sqlq, args...)
}

func (c *Client) Recent(ctx context.Context, limit int) ([]models.Memory, error) {
	return c.queryMemories(ctx, `
		SELECT id, date, category, topic, content, source, created_at, updated_at
		FROM memories ORDER BY created_at DESC LIMIT ?`, limit)
}

func (c *Client) ByCategory(ctx context.Context, category string, limit int) ([]models.Memory, error) {
	return c.queryMemories(ctx, `
		SELECT id, date, category, topic, content, source, created_at, updated_at
		FROM memories WHERE category = ? ORDER BY created_at DESC LIMIT ?`, category, limit)
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
		SELECT id FROM memories WHERE category = ? ORDER BY created_at DESC`, models.CategoryShort)
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
	stats := &models.Stats{ByCategory: map[string]int{}, DBType: "sqlite"}
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
	return &models.Health{OK: true, Detail: "sqlite file reachable"}, nil
}

func (c *Client) queryMemories(ctx context.Context, query string, args ...any) ([]models.Memory, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var out []models.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
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
