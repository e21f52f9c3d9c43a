package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryd/memoryd/pkg/relational"
	"github.com/memoryd/memoryd/pkg/relational/relationaltest"
	"github.com/memoryd/memoryd/pkg/relational/sqlitestore"
)

func newStore(t *testing.T) relational.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	store, err := sqlitestore.New(context.Background(), sqlitestore.Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestConformance(t *testing.T) {
	relationaltest.Run(t, newStore)
}
