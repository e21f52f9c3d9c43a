package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryd/memoryd/pkg/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RELATIONAL_BACKEND", "EMBEDDED_DB_PATH", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER",
		"DB_PASSWORD", "DB_MAX_CONN", "DB_IDLE_MS", "DB_CONN_TIMEOUT_MS",
		"VECTOR_URL", "VECTOR_COLLECTION", "GRAPH_URL", "GRAPH_USER", "GRAPH_PASSWORD", "GRAPH_DB",
		"CHAT_MODEL", "CHAT_API_KEY", "EMBEDDING_MODEL", "OPENAI_API_KEY",
		"LOG_PATH", "LOG_LEVEL", "SHORT_MEMORY_CAPACITY", "JOB_QUEUE_CAPACITY",
		"CHAT_TIMEOUT_MS", "EMBED_TIMEOUT_MS", "STORE_TIMEOUT_MS", "DIRECTIVE_PATH", "HTTP_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadAppliesDefaultsWithEmbeddedBackend(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, config.RelationalBackendEmbedded, cfg.RelationalBackend)
	require.Equal(t, "./memory.db", cfg.EmbeddedDBPath)
	require.Equal(t, "memory-main", cfg.VectorCollection)
	require.Equal(t, 10, cfg.ShortMemoryCapacity)
	require.Equal(t, 100, cfg.JobQueueCapacity)
}

func TestLoadNetworkedBackendRequiresDBName(t *testing.T) {
	clearEnv(t)
	t.Setenv("RELATIONAL_BACKEND", "networked")
	t.Setenv("DB_USER", "memoryd")

	_, err := config.Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "DB_NAME")
}

func TestLoadNetworkedBackendSucceedsWithRequiredFields(t *testing.T) {
	clearEnv(t)
	t.Setenv("RELATIONAL_BACKEND", "networked")
	t.Setenv("DB_NAME", "memoryd")
	t.Setenv("DB_USER", "memoryd")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 20, cfg.NetworkedDB.MaxConns)
	require.Equal(t, "localhost", cfg.NetworkedDB.Host)
}

func TestLoadRejectsUnknownRelationalBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("RELATIONAL_BACKEND", "bogus")

	_, err := config.Load("")
	require.Error(t, err)
}

func TestLoadRequiresChatAPIKeyForRemoteModel(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_MODEL", "claude-3")

	_, err := config.Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "CHAT_API_KEY")
}

func TestLoadRequiresOpenAIKeyForOpenAIEmbeddings(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMBEDDING_MODEL", "openai")

	_, err := config.Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := config.Load("")
	require.Error(t, err)
}
