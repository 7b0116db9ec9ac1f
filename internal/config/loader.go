package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "FRUITMAPPER"

// LoadConfig 加载配置文件
// configPath: 配置文件目录，如果为空则使用默认路径
// env: 环境标识，支持 development, test, production
func LoadConfig(configPath, env string) (*Config, error) {
	// 设置默认环境
	if env == "" {
		env = getEnvFromEnvironment()
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	// 根据环境选择配置文件
	configFile := getConfigFileName(configPath, env)
	v.SetConfigFile(configFile)

	// 环境变量覆盖: FRUITMAPPER_DATABASE_MYSQL_HOST 等
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvironmentVariables(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.App.Environment == "" {
		config.App.Environment = env
	}
	applyDefaultClassifierConfig(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// getEnvFromEnvironment 从环境变量获取环境标识
func getEnvFromEnvironment() string {
	env := os.Getenv(envPrefix + "_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	if env == "" {
		env = "development" // 默认开发环境
	}
	return env
}

// getDefaultConfigPath 获取默认配置文件路径
func getDefaultConfigPath() string {
	if configPath := os.Getenv(envPrefix + "_CONFIG_PATH"); configPath != "" {
		return configPath
	}
	return "configs"
}

// getConfigFileName 根据环境获取配置文件名
func getConfigFileName(configPath, env string) string {
	var configFile string

	switch env {
	case "production", "prod":
		configFile = filepath.Join(configPath, "config.prod.yaml")
	case "test", "testing":
		configFile = filepath.Join(configPath, "config.test.yaml")
	default:
		configFile = filepath.Join(configPath, "config.yaml")
	}

	// 环境专属文件不存在时回退到 config.yaml
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		defaultConfig := filepath.Join(configPath, "config.yaml")
		if _, err := os.Stat(defaultConfig); err == nil {
			return defaultConfig
		}
	}

	return configFile
}

// bindEnvironmentVariables 绑定环境变量(敏感信息不落配置文件)
func bindEnvironmentVariables(v *viper.Viper) {
	_ = v.BindEnv("database.driver", envPrefix+"_DB_DRIVER")
	_ = v.BindEnv("database.mysql.host", envPrefix+"_MYSQL_HOST")
	_ = v.BindEnv("database.mysql.port", envPrefix+"_MYSQL_PORT")
	_ = v.BindEnv("database.mysql.username", envPrefix+"_MYSQL_USERNAME")
	_ = v.BindEnv("database.mysql.password", envPrefix+"_MYSQL_PASSWORD")
	_ = v.BindEnv("database.mysql.database", envPrefix+"_MYSQL_DATABASE")
	_ = v.BindEnv("database.sqlite.path", envPrefix+"_SQLITE_PATH")

	_ = v.BindEnv("database.redis.host", envPrefix+"_REDIS_HOST")
	_ = v.BindEnv("database.redis.port", envPrefix+"_REDIS_PORT")
	_ = v.BindEnv("database.redis.password", envPrefix+"_REDIS_PASSWORD")

	_ = v.BindEnv("app.environment", envPrefix+"_APP_ENVIRONMENT")
	_ = v.BindEnv("log.level", envPrefix+"_LOG_LEVEL")
	_ = v.BindEnv("classifier.lock.backend", envPrefix+"_LOCK_BACKEND")
}

// applyDefaultClassifierConfig 填充归类引擎和数据库的缺省值
func applyDefaultClassifierConfig(config *Config) {
	if config == nil {
		return
	}

	if strings.TrimSpace(config.Database.Driver) == "" {
		config.Database.Driver = "mysql"
	}
	if config.Database.Driver == "sqlite" && strings.TrimSpace(config.Database.SQLite.Path) == "" {
		config.Database.SQLite.Path = "fruitmapper.db"
	}

	c := &config.Classifier
	if c.ChunkSize <= 0 {
		c.ChunkSize = 500
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.RegexTimeout <= 0 {
		c.RegexTimeout = 100 * time.Millisecond
	}
	if c.ReindexInterval <= 0 {
		c.ReindexInterval = time.Hour
	}
	if strings.TrimSpace(c.Lock.Backend) == "" {
		c.Lock.Backend = "local"
	}
	if strings.TrimSpace(c.Lock.Key) == "" {
		c.Lock.Key = "fruitmapper:ruleset:lock"
	}
	if c.Lock.TTL <= 0 {
		c.Lock.TTL = 10 * time.Minute
	}
}

// validateConfig 验证配置
func validateConfig(config *Config) error {
	validDrivers := []string{"mysql", "sqlite"}
	if !contains(validDrivers, config.Database.Driver) {
		return fmt.Errorf("invalid database driver: %s", config.Database.Driver)
	}

	if config.Database.Driver == "mysql" {
		if config.Database.MySQL.Host == "" {
			return fmt.Errorf("mysql host is required")
		}
		if config.Database.MySQL.Database == "" {
			return fmt.Errorf("mysql database name is required")
		}
	}

	// 验证日志配置
	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	if !contains(validLogLevels, config.Log.Level) {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Log.Format) {
		return fmt.Errorf("invalid log format: %s", config.Log.Format)
	}

	validLogOutputs := []string{"stdout", "stderr", "file"}
	if !contains(validLogOutputs, config.Log.Output) {
		return fmt.Errorf("invalid log output: %s", config.Log.Output)
	}

	if config.Log.Output == "file" && config.Log.FilePath == "" {
		return fmt.Errorf("log file path is required when output is file")
	}

	// 验证归类引擎配置
	validLockBackends := []string{"local", "redis"}
	if !contains(validLockBackends, config.Classifier.Lock.Backend) {
		return fmt.Errorf("invalid classifier lock backend: %s", config.Classifier.Lock.Backend)
	}
	if config.Classifier.Lock.Backend == "redis" && config.Database.Redis.Host == "" {
		return fmt.Errorf("redis host is required when classifier lock backend is redis")
	}
	if config.Classifier.Lock.TTL < time.Second {
		return fmt.Errorf("classifier lock ttl must be at least 1s: %s", config.Classifier.Lock.TTL)
	}

	return nil
}

// contains 检查切片是否包含指定元素
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
