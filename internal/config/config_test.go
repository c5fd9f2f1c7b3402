package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setPinecone(t *testing.T) {
	t.Helper()
	t.Setenv("PINECONE_API_KEY", "pc-key")
	t.Setenv("PINECONE_INDEX_NAME", "agri")
}

func TestLoad(t *testing.T) {
	t.Run("Should apply defaults", func(t *testing.T) {
		setPinecone(t)
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Addr())
		assert.Equal(t, ProviderPinecone, cfg.VectorProvider)
		assert.Equal(t, 10, cfg.TopK)
		assert.Equal(t, 1000, cfg.ChunkSize)
		assert.Equal(t, 200, cfg.ChunkOverlap)
		assert.Equal(t, 5, cfg.IngestConcurrency)
		assert.Equal(t, "gemini-2.0-flash", cfg.ChatModel)
		assert.Equal(t, "not-needed", cfg.LMAPIKey)
	})

	t.Run("Should read environment overrides", func(t *testing.T) {
		setPinecone(t)
		t.Setenv("PORT", "9090")
		t.Setenv("GEMINI_API_KEY", "g-key")
		t.Setenv("TOP_K", "4")
		t.Setenv("SESSION_TTL", "5m")
		t.Setenv("REWRITE_FALLBACK", "true")
		t.Setenv("CRISIS_KEYWORDS", "suicide, end my life ,")
		t.Setenv("INGEST_FILES", "./a.pdf,./b.pdf")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, ":9090", cfg.Addr())
		assert.Equal(t, "g-key", cfg.LMAPIKey)
		assert.Equal(t, 4, cfg.TopK)
		assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
		assert.True(t, cfg.RewriteFallback)
		assert.Equal(t, []string{"suicide", "end my life"}, cfg.CrisisKeywords)
		assert.Equal(t, []string{"./a.pdf", "./b.pdf"}, cfg.IngestFiles)
	})

	t.Run("Should require pinecone credentials for the pinecone provider", func(t *testing.T) {
		t.Setenv("VECTOR_PROVIDER", "pinecone")
		t.Setenv("PINECONE_API_KEY", "")
		t.Setenv("PINECONE_INDEX_NAME", "")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("Should accept sqlite provider without pinecone settings", func(t *testing.T) {
		t.Setenv("VECTOR_PROVIDER", "sqlite")
		t.Setenv("SQLITE_PATH", "/tmp/agrochat.db")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/agrochat.db", cfg.SQLitePath)
	})
}

func TestValidate(t *testing.T) {
	t.Run("Should reject overlap not smaller than chunk size", func(t *testing.T) {
		cfg := Default()
		cfg.VectorProvider = ProviderSQLite
		cfg.ChunkOverlap = cfg.ChunkSize
		require.Error(t, cfg.Validate())
	})

	t.Run("Should reject unknown session store", func(t *testing.T) {
		cfg := Default()
		cfg.VectorProvider = ProviderSQLite
		cfg.SessionStore = "memcached"
		require.Error(t, cfg.Validate())
	})

	t.Run("Should require redis address for redis sessions", func(t *testing.T) {
		cfg := Default()
		cfg.VectorProvider = ProviderSQLite
		cfg.SessionStore = SessionRedis
		require.Error(t, cfg.Validate())
		cfg.RedisAddr = "localhost:6379"
		require.NoError(t, cfg.Validate())
	})
}
