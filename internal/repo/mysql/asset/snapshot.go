package asset

import (
	"context"

	"github.com/deveyNull/fruitmapper/internal/model/asset"

	"gorm.io/gorm"
)

// RuleSnapshot 某一时刻的完整规则集
// 三个列表均按 created_at, id 升序, 后续的同分比较依赖这个顺序
type RuleSnapshot struct {
	IPRules     []*asset.OwnerIPRule
	DomainRules []*asset.OwnerDomainRule
	Fruits      []*asset.Fruit
}

// SnapshotRepository 规则快照读取
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository 创建 SnapshotRepository 实例
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// LoadRuleSnapshot 在同一事务内读取三类规则, 保证彼此一致
func (r *SnapshotRepository) LoadRuleSnapshot(ctx context.Context) (*RuleSnapshot, error) {
	snap := &RuleSnapshot{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if snap.IPRules, err = listOwnerIPRules(tx); err != nil {
			return err
		}
		if snap.DomainRules, err = listOwnerDomainRules(tx); err != nil {
			return err
		}
		snap.Fruits, err = listFruits(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
