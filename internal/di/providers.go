package di

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aihub/knowledge-go/internal/config"
	"github.com/aihub/knowledge-go/internal/database"
	"github.com/aihub/knowledge-go/internal/knowledge"
	"github.com/aihub/knowledge-go/internal/logger"
	"github.com/aihub/knowledge-go/internal/repository"
	"github.com/aihub/knowledge-go/internal/scheduler"
	"github.com/aihub/knowledge-go/internal/services"
	"github.com/aihub/knowledge-go/internal/storage"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	providers := []interface{}{
		provideConfig,
		database.NewPostgres,
		provideRedis,
		provideObjectStorage,
		provideEmbedder,
		provideVectorStore,
		provideIndexer,
		provideScheduler,
		provideHealthMonitor,
		services.NewMetricsService,
		provideRepositories,
		provideKnowledgeService,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

func provideConfig() (*config.Config, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return cfg, nil
}

// provideRedis redis未配置或不可达时返回nil客户端，嵌入缓存按nil降级
func provideRedis(cfg *config.Config) *redis.Client {
	if cfg.Redis.Host == "" {
		return nil
	}
	rdb, err := database.NewRedis(cfg)
	if err != nil {
		logger.Warn("redis unavailable, embedding cache disabled", zap.Error(err))
		return nil
	}
	return rdb
}

// provideObjectStorage minio不可用时降级为Noop，上传仍可入库但不落盘
func provideObjectStorage(cfg *config.Config) storage.ObjectStorage {
	if cfg.Knowledge.Storage.Provider == "minio" && cfg.Knowledge.Storage.AccessKey != "" {
		s, err := storage.NewMinioStorage(cfg.Knowledge.Storage)
		if err == nil {
			return s
		}
		logger.Warn("minio unavailable, falling back to noop storage", zap.Error(err))
	}
	return storage.NoopStorage{}
}

func provideEmbedder(cfg *config.Config) (knowledge.Embedder, error) {
	return knowledge.NewEmbedder(knowledge.EmbedderOptions{
		Type:       cfg.Knowledge.Embedding.Type,
		ModelName:  cfg.Knowledge.Embedding.ModelName,
		APIKey:     cfg.Knowledge.Embedding.APIKey,
		BaseURL:    cfg.Knowledge.Embedding.BaseURL,
		Dimensions: cfg.Knowledge.Embedding.Dimensions,
	})
}

func provideVectorStore(cfg *config.Config) (knowledge.VectorStore, error) {
	switch cfg.Knowledge.VectorStore.Provider {
	case "milvus":
		mc := cfg.Knowledge.VectorStore.Milvus
		return knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
			Address:  mc.Address,
			Username: mc.Username,
			Password: mc.Password,
			Database: mc.Database,
			UseTLS:   mc.TLS,
		})
	default:
		return knowledge.NewMemoryVectorStore(), nil
	}
}

func provideIndexer(cfg *config.Config) (knowledge.FulltextIndexer, error) {
	switch cfg.Knowledge.Search.Provider {
	case "elasticsearch":
		es := cfg.Knowledge.Search.Elasticsearch
		return knowledge.NewElasticsearchIndexer(es.Addresses, es.Username, es.Password, es.APIKey, es.IndexPrefix)
	default:
		return knowledge.NewBM25Indexer(), nil
	}
}

func provideScheduler(cfg *config.Config) *scheduler.Scheduler {
	return scheduler.New(cfg.Knowledge.Scheduler.Workers, cfg.Knowledge.Scheduler.QueueSize)
}

// provideHealthMonitor 注册各后端的存活探针
func provideHealthMonitor(
	db *gorm.DB,
	rdb *redis.Client,
	vectorStore knowledge.VectorStore,
	indexer knowledge.FulltextIndexer,
	embedder knowledge.Embedder,
) *scheduler.HealthMonitor {
	monitor := scheduler.NewHealthMonitor()
	monitor.Register("database", func(ctx context.Context) error {
		return database.PingPostgres(db)
	})
	if rdb != nil {
		monitor.Register("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	monitor.Register("vector_store", readyProbe("vector store", vectorStore.Ready))
	monitor.Register("fulltext_index", readyProbe("fulltext index", indexer.Ready))
	monitor.Register("embedder", readyProbe("embedding provider", embedder.Ready))
	return monitor
}

func readyProbe(name string, ready func() bool) scheduler.HealthCheck {
	return func(ctx context.Context) error {
		if !ready() {
			return fmt.Errorf("%s is not ready", name)
		}
		return nil
	}
}

type repositories struct {
	dig.Out

	KBRepo  repository.KnowledgeBaseRepository
	DocRepo repository.DocumentRepository
}

func provideRepositories(db *gorm.DB) repositories {
	return repositories{
		KBRepo:  repository.NewKnowledgeBaseRepository(db),
		DocRepo: repository.NewDocumentRepository(db),
	}
}

func provideKnowledgeService(
	cfg *config.Config,
	kbRepo repository.KnowledgeBaseRepository,
	docRepo repository.DocumentRepository,
	objectStorage storage.ObjectStorage,
	sched *scheduler.Scheduler,
	vectorStore knowledge.VectorStore,
	indexer knowledge.FulltextIndexer,
	embedder knowledge.Embedder,
	rdb *redis.Client,
	metrics *services.MetricsService,
) (*services.KnowledgeService, error) {
	return services.NewKnowledgeService(services.KnowledgeServiceDeps{
		Config:        cfg,
		KBRepo:        kbRepo,
		DocRepo:       docRepo,
		ObjectStorage: objectStorage,
		Scheduler:     sched,
		VectorStore:   vectorStore,
		Indexer:       indexer,
		Embedder:      embedder,
		Redis:         rdb,
		Metrics:       metrics,
	})
}
