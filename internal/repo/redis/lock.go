/**
 * 规则集锁:Redis实现
 * @description: 多实例部署时保证同一时刻只有一个实例在修改规则集或全量重算
 * @note: 锁值为随机令牌, 只有持有者能续期和释放
 */
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deveyNull/fruitmapper/internal/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	defaultLockTTL    = 10 * time.Minute
	minLockTTL        = time.Second
	lockRetryInterval = 50 * time.Millisecond
)

// 令牌一致才删除
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// 令牌一致才续期
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RuleSetLock 基于 SET NX PX 的分布式规则集锁
type RuleSetLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRuleSetLock 创建Redis规则集锁
func NewRuleSetLock(client *redis.Client, key string, ttl time.Duration) *RuleSetLock {
	switch {
	case ttl <= 0:
		ttl = defaultLockTTL
	case ttl < minLockTTL:
		// 续期间隔为 ttl/3, 过短的 ttl 无法续期
		ttl = minLockTTL
	}
	return &RuleSetLock{client: client, key: key, ttl: ttl}
}

// Lock 轮询获取锁直到成功或 ctx 结束
// 持有期间后台每 ttl/3 续期一次, unlock 时停止续期并释放
func (l *RuleSetLock) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() { l.release(token, stop, done) })
	}, nil
}

func (l *RuleSetLock) release(token string, stop chan struct{}, done <-chan struct{}) {
	close(stop)
	<-done

	// 释放不受调用方 ctx 影响
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		logger.LogError(err, "REPO", "release_ruleset_lock", map[string]interface{}{
			"key": l.key,
		})
	}
}

func (l *RuleSetLock) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := refreshScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Err()
			cancel()
			if err != nil && !errors.Is(err, redis.Nil) {
				logger.LogError(err, "REPO", "refresh_ruleset_lock", map[string]interface{}{
					"key": l.key,
				})
			}
		}
	}
}
