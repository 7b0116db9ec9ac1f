// 一致性维护
// 规则或服务变化后显式调用, 在规则集锁内完成 "变更 + 重算", 保证库中派生字段与当前规则一致
package classify

import (
	"context"
	"errors"
	"strings"

	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/model/system"
	"github.com/deveyNull/fruitmapper/internal/pkg/utils"
	"github.com/deveyNull/fruitmapper/internal/service/rule"
)

// RuleStore 会影响归类结果的规则操作
type RuleStore interface {
	RemoveOwner(ctx context.Context, id uint64) error
	AddOwnerIPRule(ctx context.Context, ownerID uint64, spec string) (*asset.OwnerIPRule, error)
	FindOwnerIPRule(ctx context.Context, spec string) (*asset.OwnerIPRule, error)
	UpdateOwnerIPRule(ctx context.Context, id, ownerID uint64, spec string) (*asset.OwnerIPRule, error)
	RemoveOwnerIPRule(ctx context.Context, id uint64) error
	AddOwnerDomainRule(ctx context.Context, ownerID uint64, domain string, includeSubdomains bool) (*asset.OwnerDomainRule, error)
	FindOwnerDomainRule(ctx context.Context, domain string) (*asset.OwnerDomainRule, error)
	UpdateOwnerDomainRule(ctx context.Context, id, ownerID uint64, domain string, includeSubdomains bool) (*asset.OwnerDomainRule, error)
	RemoveOwnerDomainRule(ctx context.Context, id uint64) error
	GetFruitByID(ctx context.Context, id uint64) (*asset.Fruit, error)
	GetFruitByName(ctx context.Context, name string) (*asset.Fruit, error)
	AddFruit(ctx context.Context, fruit *asset.Fruit) error
	UpdateFruit(ctx context.Context, fruit *asset.Fruit) (rule.FruitChange, error)
	RemoveFruit(ctx context.Context, id uint64) error
}

// Maintainer 一致性维护器
type Maintainer struct {
	rules        RuleStore
	orchestrator *Orchestrator
}

// NewMaintainer 创建一致性维护器
func NewMaintainer(rules RuleStore, orchestrator *Orchestrator) *Maintainer {
	return &Maintainer{rules: rules, orchestrator: orchestrator}
}

// withRuleSetLock 在锁内执行变更, 变更成功后按范围重算
func (m *Maintainer) withRuleSetLock(ctx context.Context, scope Scope, mutate func() error) (*Report, error) {
	unlock, err := m.orchestrator.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := mutate(); err != nil {
		return nil, err
	}
	return m.orchestrator.reclassifyLocked(ctx, scope)
}

// -----------------------------------------------------------------------------
// 归属规则
// -----------------------------------------------------------------------------

// AddOwnerIPRule 新增IP规则并重算归属
// 同一归属方的相同规则已存在时视为已写入, 只补做重算; 上次重算失败后可直接重试
func (m *Maintainer) AddOwnerIPRule(ctx context.Context, ownerID uint64, spec string) (*asset.OwnerIPRule, *Report, error) {
	var created *asset.OwnerIPRule
	report, err := m.withRuleSetLock(ctx, ScopeOwner, func() (err error) {
		created, err = m.rules.AddOwnerIPRule(ctx, ownerID, spec)
		if !errors.Is(err, system.ErrRuleExists) {
			return err
		}
		existing, findErr := m.rules.FindOwnerIPRule(ctx, spec)
		if findErr != nil {
			return findErr
		}
		if existing == nil || existing.OwnerID != ownerID {
			return err
		}
		created = existing
		return nil
	})
	return created, report, err
}

// UpdateOwnerIPRule 修改IP规则并重算归属
func (m *Maintainer) UpdateOwnerIPRule(ctx context.Context, id, ownerID uint64, spec string) (*asset.OwnerIPRule, *Report, error) {
	var updated *asset.OwnerIPRule
	report, err := m.withRuleSetLock(ctx, ScopeOwner, func() (err error) {
		updated, err = m.rules.UpdateOwnerIPRule(ctx, id, ownerID, spec)
		return err
	})
	return updated, report, err
}

// RemoveOwnerIPRule 删除IP规则并重算归属
func (m *Maintainer) RemoveOwnerIPRule(ctx context.Context, id uint64) (*Report, error) {
	return m.withRuleSetLock(ctx, ScopeOwner, func() error {
		return m.rules.RemoveOwnerIPRule(ctx, id)
	})
}

// AddOwnerDomainRule 新增域名规则并重算归属, 重试语义同 AddOwnerIPRule
func (m *Maintainer) AddOwnerDomainRule(ctx context.Context, ownerID uint64, domain string, includeSubdomains bool) (*asset.OwnerDomainRule, *Report, error) {
	var created *asset.OwnerDomainRule
	report, err := m.withRuleSetLock(ctx, ScopeOwner, func() (err error) {
		created, err = m.rules.AddOwnerDomainRule(ctx, ownerID, domain, includeSubdomains)
		if !errors.Is(err, system.ErrRuleExists) {
			return err
		}
		existing, findErr := m.rules.FindOwnerDomainRule(ctx, domain)
		if findErr != nil {
			return findErr
		}
		if existing == nil || existing.OwnerID != ownerID || existing.IncludeSubdomains != includeSubdomains {
			return err
		}
		created = existing
		return nil
	})
	return created, report, err
}

// UpdateOwnerDomainRule 修改域名规则并重算归属
func (m *Maintainer) UpdateOwnerDomainRule(ctx context.Context, id, ownerID uint64, domain string, includeSubdomains bool) (*asset.OwnerDomainRule, *Report, error) {
	var updated *asset.OwnerDomainRule
	report, err := m.withRuleSetLock(ctx, ScopeOwner, func() (err error) {
		updated, err = m.rules.UpdateOwnerDomainRule(ctx, id, ownerID, domain, includeSubdomains)
		return err
	})
	return updated, report, err
}

// RemoveOwnerDomainRule 删除域名规则并重算归属
func (m *Maintainer) RemoveOwnerDomainRule(ctx context.Context, id uint64) (*Report, error) {
	return m.withRuleSetLock(ctx, ScopeOwner, func() error {
		return m.rules.RemoveOwnerDomainRule(ctx, id)
	})
}

// RemoveOwner 删除归属方(连同其规则)并重算归属
func (m *Maintainer) RemoveOwner(ctx context.Context, id uint64) (*Report, error) {
	return m.withRuleSetLock(ctx, ScopeOwner, func() error {
		return m.rules.RemoveOwner(ctx, id)
	})
}

// -----------------------------------------------------------------------------
// 指纹规则
// -----------------------------------------------------------------------------

// AddFruit 新增指纹并重算指纹归类
// 同名且类别与匹配条件都相同的指纹已存在时视为已写入, 只补做重算
func (m *Maintainer) AddFruit(ctx context.Context, fruit *asset.Fruit) (*Report, error) {
	return m.withRuleSetLock(ctx, ScopeIdentity, func() error {
		err := m.rules.AddFruit(ctx, fruit)
		if !errors.Is(err, system.ErrFruitExists) {
			return err
		}
		existing, findErr := m.rules.GetFruitByName(ctx, fruit.Name)
		if findErr != nil {
			return findErr
		}
		if existing == nil || !sameFruitRule(existing, fruit) {
			return err
		}
		fruit.BaseModel = existing.BaseModel
		return nil
	})
}

func sameFruitRule(a, b *asset.Fruit) bool {
	return a.FruitTypeID == b.FruitTypeID &&
		strings.EqualFold(a.MatchType, b.MatchType) &&
		a.Regex() == b.Regex()
}

// UpdateFruit 更新指纹
// 匹配条件变化时重算指纹归类; 仅类别变化时只同步 fruit_type_id, 返回的 Report 为 nil
func (m *Maintainer) UpdateFruit(ctx context.Context, fruit *asset.Fruit) (*Report, error) {
	unlock, err := m.orchestrator.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	change, err := m.rules.UpdateFruit(ctx, fruit)
	if err != nil {
		return nil, err
	}
	switch {
	case change.PatternChanged:
		return m.orchestrator.reclassifyLocked(ctx, ScopeIdentity)
	case change.TypeChanged:
		_, err := m.orchestrator.reassignFruitTypeLocked(ctx, fruit.ID, fruit.FruitTypeID)
		return nil, err
	}
	return nil, nil
}

// ReassignFruitType 把指纹改到另一个产品类别, 不重新匹配, 返回同步的服务数
func (m *Maintainer) ReassignFruitType(ctx context.Context, fruitID, fruitTypeID uint64) (int64, error) {
	unlock, err := m.orchestrator.lock.Lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	fruit, err := m.rules.GetFruitByID(ctx, fruitID)
	if err != nil {
		return 0, err
	}
	if fruit == nil {
		return 0, system.ErrFruitNotFound
	}
	fruit.FruitTypeID = fruitTypeID
	change, err := m.rules.UpdateFruit(ctx, fruit)
	if err != nil {
		return 0, err
	}
	if !change.TypeChanged {
		return 0, nil
	}
	return m.orchestrator.reassignFruitTypeLocked(ctx, fruit.ID, fruit.FruitTypeID)
}

// RemoveFruit 删除指纹并重算指纹归类
func (m *Maintainer) RemoveFruit(ctx context.Context, id uint64) (*Report, error) {
	return m.withRuleSetLock(ctx, ScopeIdentity, func() error {
		return m.rules.RemoveFruit(ctx, id)
	})
}

// -----------------------------------------------------------------------------
// 服务
// -----------------------------------------------------------------------------

// CreateService 新建服务并立即归类
// 派生字段由引擎计算, 调用方传入的值被忽略
func (m *Maintainer) CreateService(ctx context.Context, svc *asset.Service) (*Result, error) {
	if err := validateService(svc); err != nil {
		return nil, err
	}
	svc.OwnerID, svc.FruitID, svc.FruitTypeID = nil, nil, nil

	unlock, err := m.orchestrator.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := m.orchestrator.services.CreateService(ctx, svc); err != nil {
		return nil, err
	}
	return m.orchestrator.classifyServiceLocked(ctx, svc.ID)
}

// UpdateService 更新服务的采集字段; ip/domain/banner/http_data 有变化时重新归类
// 无需重新归类时返回的 Result 为 nil
func (m *Maintainer) UpdateService(ctx context.Context, svc *asset.Service) (*Result, error) {
	if svc == nil || svc.ID == 0 {
		return nil, system.NewValidationError("id", "service id is required")
	}
	if err := validateService(svc); err != nil {
		return nil, err
	}

	unlock, err := m.orchestrator.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := m.orchestrator.services.GetServiceByID(ctx, svc.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, system.ErrServiceNotFound
	}

	if err := m.orchestrator.services.UpdateServiceFields(ctx, svc); err != nil {
		return nil, err
	}
	if !matchableChanged(existing, svc) {
		return nil, nil
	}
	return m.orchestrator.classifyServiceLocked(ctx, svc.ID)
}

// ServiceChanged 服务在外部被修改后调用, 重新归类该服务
func (m *Maintainer) ServiceChanged(ctx context.Context, serviceID uint64) (*Result, error) {
	return m.orchestrator.ClassifyService(ctx, serviceID)
}

// RemoveService 删除服务
func (m *Maintainer) RemoveService(ctx context.Context, id uint64) error {
	existing, err := m.orchestrator.services.GetServiceByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return system.ErrServiceNotFound
	}
	return m.orchestrator.services.DeleteService(ctx, id)
}

func validateService(svc *asset.Service) error {
	if svc == nil {
		return system.NewValidationError("", "service cannot be nil")
	}
	if svc.IP == "" {
		return system.NewValidationError("ip", "service ip is required")
	}
	if svc.Port < 0 || svc.Port > 65535 {
		return system.NewValidationError("port", "port out of range")
	}
	return nil
}

// matchableChanged 参与匹配的字段是否变化
func matchableChanged(old, updated *asset.Service) bool {
	return utils.NormalizeIP(old.IP) != utils.NormalizeIP(updated.IP) ||
		!eqStr(old.Domain, updated.Domain) ||
		!eqStr(old.Banner, updated.Banner) ||
		!eqStr(old.HTTPData, updated.HTTPData)
}

func eqStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
