/**
 * 规则集锁:进程内实现
 * @description: 单实例部署使用, 多实例部署请使用 redis 实现
 */
package memory

import (
	"context"
	"sync"
)

// RuleSetLock 进程内规则集互斥锁
// 用容量为1的通道实现, 以便在等待时响应 ctx 取消
type RuleSetLock struct {
	sem chan struct{}
}

// NewRuleSetLock 创建进程内规则集锁
func NewRuleSetLock() *RuleSetLock {
	return &RuleSetLock{sem: make(chan struct{}, 1)}
}

// Lock 获取锁, 返回的 unlock 可重复调用
func (l *RuleSetLock) Lock(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-l.sem })
	}, nil
}
