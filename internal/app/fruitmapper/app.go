package fruitmapper

import (
	"fmt"

	"github.com/deveyNull/fruitmapper/internal/app/fruitmapper/setup"
	"github.com/deveyNull/fruitmapper/internal/config"
	"github.com/deveyNull/fruitmapper/internal/pkg/database"
	"github.com/deveyNull/fruitmapper/internal/pkg/logger"
	"github.com/deveyNull/fruitmapper/internal/service/classify"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// App 应用程序结构体, 持有配置、连接和归类引擎模块
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client // 仅 redis 锁后端时非空
	Classify *setup.ClassifyModule
}

// NewApp 加载配置并初始化日志、数据库和归类引擎
func NewApp(configPath, env string) (*App, error) {
	cfg, err := config.LoadConfig(configPath, env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig 用已加载的配置初始化应用
func NewAppWithConfig(cfg *config.Config) (*App, error) {
	if _, err := logger.InitLogger(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"path":      "app.fruitmapper",
		"operation": "startup",
		"option":    cfg.App.Environment,
		"func_name": "fruitmapper.NewAppWithConfig",
	}).Info("开始初始化应用")

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	app := &App{Config: cfg, DB: db}

	if cfg.Classifier.Lock.Backend == "redis" {
		client, err := database.NewRedisConnection(&cfg.Database.Redis)
		if err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		app.Redis = client
	}

	lock, err := setup.BuildRuleSetLock(&cfg.Classifier.Lock, app.Redis)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Classify = setup.BuildClassifyModule(db, lock, &cfg.Classifier)

	logger.WithFields(map[string]interface{}{
		"path":      "app.fruitmapper",
		"operation": "startup",
		"option":    cfg.Database.Driver,
		"func_name": "fruitmapper.NewAppWithConfig",
	}).Info("应用初始化完成")

	return app, nil
}

// Migrate 自动迁移表结构
func (a *App) Migrate() error {
	return database.AutoMigrate(a.DB)
}

// ApplyConfig 配置热更新: 日志级别/格式和归类参数即时生效, 连接类配置需重启
func (a *App) ApplyConfig(oldConfig, newConfig *config.Config) error {
	if logger.LoggerInstance != nil {
		current := logger.LoggerInstance.GetConfig()
		if current.Output != newConfig.Log.Output || current.FilePath != newConfig.Log.FilePath {
			logger.Warnf("log output changed, restart required to take effect")
		}
		if err := logger.LoggerInstance.UpdateConfig(&newConfig.Log); err != nil {
			return fmt.Errorf("failed to update log config: %w", err)
		}
	}

	a.Classify.Orchestrator.SetOptions(classify.OptionsFromConfig(&newConfig.Classifier))

	if oldConfig != nil && (oldConfig.Database.Driver != newConfig.Database.Driver ||
		oldConfig.Classifier.Lock.Backend != newConfig.Classifier.Lock.Backend) {
		logger.Warnf("database driver or lock backend changed, restart required to take effect")
	}

	a.Config = newConfig
	return nil
}

// Close 关闭数据库和Redis连接
func (a *App) Close() error {
	var firstErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if err := database.Close(a.DB); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
