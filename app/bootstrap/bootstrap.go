package bootstrap

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aihub/knowledge-go/internal/config"
	"github.com/aihub/knowledge-go/internal/di"
	"github.com/aihub/knowledge-go/internal/logger"
	"github.com/aihub/knowledge-go/internal/scheduler"
	"github.com/aihub/knowledge-go/internal/services"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error
}

// Init bootstraps configuration, logger, the dependency container and the
// background scheduler required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	app := &App{}

	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, err
	}

	// 预热核心依赖：数据库连接与迁移、任务池、编排服务
	err := di.Invoke(func(
		db *gorm.DB,
		rdb *redis.Client,
		sched *scheduler.Scheduler,
		monitor *scheduler.HealthMonitor,
		svc *services.KnowledgeService,
	) {
		app.cleanupTasks = append(app.cleanupTasks, func() error {
			sched.Shutdown()
			return nil
		})
		if rdb != nil {
			app.cleanupTasks = append(app.cleanupTasks, rdb.Close)
		}
		app.cleanupTasks = append(app.cleanupTasks, func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})

		interval := time.Duration(config.AppConfig.Knowledge.Health.CheckInterval) * time.Second
		if interval <= 0 {
			interval = 30 * time.Second
		}
		monitor.Start(sched, interval)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("application bootstrapped",
		zap.String("env", config.AppConfig.Server.Env))
	return app, nil
}

// Shutdown flushes logs and closes resources gracefully.
func (a *App) Shutdown() {
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	logger.Sync()
}
