package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	AppConfig = nil
	t.Cleanup(func() {
		viper.Reset()
		AppConfig = nil
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	resetConfig(t)

	require.NoError(t, LoadConfig())
	require.NotNil(t, AppConfig)

	assert.Equal(t, "8001", AppConfig.Server.Port)
	assert.Equal(t, "development", AppConfig.Server.Env)
	assert.Equal(t, 1000, AppConfig.Knowledge.ChunkSize)
	assert.Equal(t, 200, AppConfig.Knowledge.ChunkOverlap)
	assert.Equal(t, 4, AppConfig.Knowledge.Scheduler.Workers)
	assert.Equal(t, 256, AppConfig.Knowledge.Scheduler.QueueSize)
	assert.Equal(t, "memory", AppConfig.Knowledge.VectorStore.Provider)
	assert.Equal(t, "memory", AppConfig.Knowledge.Search.Provider)
	assert.Equal(t, "local", AppConfig.Knowledge.Embedding.Type)
	assert.Equal(t, 384, AppConfig.Knowledge.Embedding.Dimensions)
	assert.Equal(t, "hybrid", AppConfig.Knowledge.Retrieval.Type)
	assert.InDelta(t, 0.7, AppConfig.Knowledge.Retrieval.VectorWeight, 1e-9)
	assert.InDelta(t, 0.3, AppConfig.Knowledge.Retrieval.BM25Weight, 1e-9)
	assert.Equal(t, 3, AppConfig.Knowledge.Retrieval.TopK)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	resetConfig(t)

	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgresql://user:pass@db:5432/kb")
	t.Setenv("MILVUS_ADDRESS", "milvus:19530")
	t.Setenv("ELASTICSEARCH_ADDRESSES", "http://es1:9200, http://es2:9200")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	require.NoError(t, LoadConfig())

	assert.Equal(t, "9090", AppConfig.Server.Port)
	assert.Equal(t, "postgresql://user:pass@db:5432/kb", AppConfig.Database.URL)

	// 配置了外部后端地址时自动切换provider
	assert.Equal(t, "milvus", AppConfig.Knowledge.VectorStore.Provider)
	assert.Equal(t, "milvus:19530", AppConfig.Knowledge.VectorStore.Milvus.Address)
	assert.Equal(t, "elasticsearch", AppConfig.Knowledge.Search.Provider)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, AppConfig.Knowledge.Search.Elasticsearch.Addresses)
	assert.Equal(t, "openai", AppConfig.Knowledge.Embedding.Type)
	assert.Equal(t, "sk-test", AppConfig.Knowledge.Embedding.APIKey)
}

func TestGetConfigLoadsLazily(t *testing.T) {
	resetConfig(t)

	cfg := GetConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, cfg, AppConfig)
}
