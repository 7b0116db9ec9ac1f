/**
 * 初始化:规则集锁
 * @description: 按配置选择进程内锁或 Redis 分布式锁
 */
package setup

import (
	"fmt"

	"github.com/deveyNull/fruitmapper/internal/config"
	"github.com/deveyNull/fruitmapper/internal/pkg/logger"
	"github.com/deveyNull/fruitmapper/internal/repo/memory"
	redisRepo "github.com/deveyNull/fruitmapper/internal/repo/redis"
	"github.com/deveyNull/fruitmapper/internal/service/classify"

	"github.com/go-redis/redis/v8"
)

// BuildRuleSetLock 构建规则集锁
// 多实例共用同一数据库时必须使用 redis 后端
func BuildRuleSetLock(cfg *config.LockConfig, client *redis.Client) (classify.Locker, error) {
	logger.WithFields(map[string]interface{}{
		"path":      "setup.lock",
		"operation": "build_lock",
		"option":    cfg.Backend,
		"func_name": "setup.BuildRuleSetLock",
	}).Info("初始化规则集锁")

	switch cfg.Backend {
	case "", "local":
		return memory.NewRuleSetLock(), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis client is required for lock backend redis")
		}
		return redisRepo.NewRuleSetLock(client, cfg.Key, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported lock backend: %s", cfg.Backend)
	}
}
