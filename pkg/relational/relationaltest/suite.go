// Package relationaltest holds the shared conformance suite that every
// relational.Store backend (pgstore, sqlitestore) must satisfy
// identically: observable behavior differs only in connection/transport.
package relationaltest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/relational"
)

// Run drives the suite against a freshly constructed Store per subtest.
func Run(t *testing.T, newStore func(t *testing.T) relational.Store) {
	t.Run("save and get round-trip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		saved, err := store.SaveMemory(ctx, "notes", "topic-a", "content-a")
		require.NoError(t, err)
		require.NotZero(t, saved.ID)

		got, err := store.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, "topic-a", got.Topic)
		require.Equal(t, "content-a", got.Content)
		require.Equal(t, "notes", got.Category)
	})

	t.Run("get by id absent returns nil", func(t *testing.T) {
		store := newStore(t)
		got, err := store.GetByID(context.Background(), 999999)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("update is partial", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		saved, err := store.SaveMemory(ctx, "notes", "orig-topic", "orig-content")
		require.NoError(t, err)

		newContent := "updated-content"
		ok, err := store.Update(ctx, saved.ID, relational.UpdateFields{Content: &newContent})
		require.NoError(t, err)
		require.True(t, ok)

		got, err := store.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		require.Equal(t, "orig-topic", got.Topic)
		require.Equal(t, "updated-content", got.Content)
	})

	t.Run("update absent id returns false", func(t *testing.T) {
		store := newStore(t)
		topic := "x"
		ok, err := store.Update(context.Background(), 999999, relational.UpdateFields{Topic: &topic})
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("move rejects empty category", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		saved, err := store.SaveMemory(ctx, "notes", "t", "c")
		require.NoError(t, err)

		_, err = store.Move(ctx, saved.ID, "")
		require.Error(t, err)
		require.True(t, relational.IsValidationError(err))
	})

	t.Run("move changes category", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		saved, err := store.SaveMemory(ctx, "notes", "t", "c")
		require.NoError(t, err)

		ok, err := store.Move(ctx, saved.ID, "archive")
		require.NoError(t, err)
		require.True(t, ok)

		got, err := store.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		require.Equal(t, "archive", got.Category)
	})

	t.Run("delete removes row", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		saved, err := store.SaveMemory(ctx, "notes", "t", "c")
		require.NoError(t, err)

		ok, err := store.Delete(ctx, saved.ID)
		require.NoError(t, err)
		require.True(t, ok)

		got, err := store.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("search basic matches topic or content, case-insensitively", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.SaveMemory(ctx, "cat-a", "Golang Concurrency", "patterns for fan-out")
		require.NoError(t, err)
		_, err = store.SaveMemory(ctx, "cat-b", "unrelated", "something about GOLANG basics")
		require.NoError(t, err)
		_, err = store.SaveMemory(ctx, "cat-a", "other", "nothing matches here")
		require.NoError(t, err)

		results, err := store.SearchBasic(ctx, "golang", nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
	})

	t.Run("search basic intersects with categories", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.SaveMemory(ctx, "cat-a", "Golang Concurrency", "fan-out")
		require.NoError(t, err)
		_, err = store.SaveMemory(ctx, "cat-b", "unrelated", "also mentions golang")
		require.NoError(t, err)

		results, err := store.SearchBasic(ctx, "golang", []string{"cat-a"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, "cat-a", results[0].Category)
	})

	t.Run("list categories aggregates counts", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.SaveMemory(ctx, "cat-a", "t1", "c1")
		require.NoError(t, err)
		_, err = store.SaveMemory(ctx, "cat-a", "t2", "c2")
		require.NoError(t, err)
		_, err = store.SaveMemory(ctx, "cat-b", "t3", "c3")
		require.NoError(t, err)

		counts, err := store.ListCategories(ctx)
		require.NoError(t, err)

		byCat := map[string]int{}
		for _, cc := range counts {
			byCat[cc.Category] = cc.Count
		}
		require.Equal(t, 2, byCat["cat-a"])
		require.Equal(t, 1, byCat["cat-b"])
	})

	t.Run("short memory cache is bounded", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		capacity := 3
		for i := 0; i < 5; i++ {
			err := store.AddToShortMemory(ctx, capacity, models.Memory{Topic: "t", Content: "c"})
			require.NoError(t, err)
		}

		items, err := store.ListShortMemory(ctx, 100)
		require.NoError(t, err)
		require.LessOrEqual(t, len(items), capacity)
	})

	t.Run("stats reports total and db type", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		_, err := store.SaveMemory(ctx, "cat-a", "t", "c")
		require.NoError(t, err)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, stats.Total, 1)
		require.NotEmpty(t, stats.DBType)
	})

	t.Run("health reports ok", func(t *testing.T) {
		store := newStore(t)
		health, err := store.Health(context.Background())
		require.NoError(t, err)
		require.True(t, health.OK)
	})
}
