package asset

import (
	"context"
	"errors"

	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/pkg/logger"

	"gorm.io/gorm"
)

// OwnerRepository 归属方仓库
// 负责 Owner / OwnerIPRule / OwnerDomainRule 的数据访问
type OwnerRepository struct {
	db *gorm.DB
}

// NewOwnerRepository 创建 OwnerRepository 实例
func NewOwnerRepository(db *gorm.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

// -----------------------------------------------------------------------------
// Owner (归属方) CRUD
// -----------------------------------------------------------------------------

// CreateOwner 创建归属方
func (r *OwnerRepository) CreateOwner(ctx context.Context, owner *asset.Owner) error {
	if owner == nil {
		return errors.New("owner is nil")
	}
	if err := r.db.WithContext(ctx).Create(owner).Error; err != nil {
		logger.LogError(err, "REPO", "create_owner", map[string]interface{}{
			"name": owner.Name,
		})
		return err
	}
	return nil
}

// GetOwnerByID 根据ID获取归属方, 不存在返回 nil, nil
func (r *OwnerRepository) GetOwnerByID(ctx context.Context, id uint64) (*asset.Owner, error) {
	var owner asset.Owner
	err := r.db.WithContext(ctx).First(&owner, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "REPO", "get_owner_by_id", map[string]interface{}{
			"id": id,
		})
		return nil, err
	}
	return &owner, nil
}

// GetOwnerByName 根据名称获取归属方
func (r *OwnerRepository) GetOwnerByName(ctx context.Context, name string) (*asset.Owner, error) {
	var owner asset.Owner
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&owner).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "REPO", "get_owner_by_name", map[string]interface{}{
			"name": name,
		})
		return nil, err
	}
	return &owner, nil
}

// UpdateOwner 更新归属方(整行保存)
func (r *OwnerRepository) UpdateOwner(ctx context.Context, owner *asset.Owner) error {
	if owner == nil || owner.ID == 0 {
		return errors.New("invalid owner or id")
	}
	if err := r.db.WithContext(ctx).Save(owner).Error; err != nil {
		logger.LogError(err, "REPO", "update_owner", map[string]interface{}{
			"id": owner.ID,
		})
		return err
	}
	return nil
}

// DeleteOwner 删除归属方及其全部IP/域名规则
func (r *OwnerRepository) DeleteOwner(ctx context.Context, id uint64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", id).Delete(&asset.OwnerIPRule{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", id).Delete(&asset.OwnerDomainRule{}).Error; err != nil {
			return err
		}
		return tx.Delete(&asset.Owner{}, id).Error
	})
	if err != nil {
		logger.LogError(err, "REPO", "delete_owner", map[string]interface{}{
			"id": id,
		})
		return err
	}
	return nil
}

// ListOwners 获取全部归属方
func (r *OwnerRepository) ListOwners(ctx context.Context) ([]*asset.Owner, error) {
	var owners []*asset.Owner
	if err := r.db.WithContext(ctx).Order("id asc").Find(&owners).Error; err != nil {
		logger.LogError(err, "REPO", "list_owners", nil)
		return nil, err
	}
	return owners, nil
}

// CountServicesByOwner 统计归属于该归属方的服务数
func (r *OwnerRepository) CountServicesByOwner(ctx context.Context, ownerID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&asset.Service{}).Where("owner_id = ?", ownerID).Count(&count).Error
	if err != nil {
		logger.LogError(err, "REPO", "count_services_by_owner", map[string]interface{}{
			"owner_id": ownerID,
		})
		return 0, err
	}
	return count, nil
}

// ReplaceOwnerRules 在一个事务内用新规则替换归属方的全部IP/域名规则
func (r *OwnerRepository) ReplaceOwnerRules(ctx context.Context, ownerID uint64, ipRules []*asset.OwnerIPRule, domainRules []*asset.OwnerDomainRule) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", ownerID).Delete(&asset.OwnerIPRule{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", ownerID).Delete(&asset.OwnerDomainRule{}).Error; err != nil {
			return err
		}
		for _, rule := range ipRules {
			rule.OwnerID = ownerID
			if err := tx.Create(rule).Error; err != nil {
				return err
			}
		}
		for _, rule := range domainRules {
			rule.OwnerID = ownerID
			if err := tx.Create(rule).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.LogError(err, "REPO", "replace_owner_rules", map[string]interface{}{
			"owner_id":     ownerID,
			"ip_rules":     len(ipRules),
			"domain_rules": len(domainRules),
		})
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------
// OwnerIPRule (IP规则) CRUD
// -----------------------------------------------------------------------------

// CreateIPRule 创建IP规则
func (r *OwnerRepository) CreateIPRule(ctx context.Context, rule *asset.OwnerIPRule) error {
	if rule == nil {
		return errors.New("ip rule is nil")
	}
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		logger.LogError(err, "REPO", "create_ip_rule", map[string]interface{}{
			"owner_id": rule.OwnerID,
			"ip":       rule.IP,
		})
		return err
	}
	return nil
}

// GetIPRuleByID 根据ID获取IP规则
func (r *OwnerRepository) GetIPRuleByID(ctx context.Context, id uint64) (*asset.OwnerIPRule, error) {
	var rule asset.OwnerIPRule
	err := r.db.WithContext(ctx).First(&rule, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "REPO", "get_ip_rule_by_id", map[string]interface{}{
			"id": id,
		})
		return nil, err
	}
	return &rule, nil
}

// GetIPRuleBySpec 根据规则字面量获取IP规则
func (r *OwnerRepository) GetIPRuleBySpec(ctx context.Context, spec string) (*asset.OwnerIPRule, error) {
	var rule asset.OwnerIPRule
	err := r.db.WithContext(ctx).Where("ip = ?", spec).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "REPO", "get_ip_rule_by_spec", map[string]interface{}{
			"ip": spec,
		})
		return nil, err
	}
	return &rule, nil
}

// UpdateIPRule 更新IP规则
func (r *OwnerRepository) UpdateIPRule(ctx context.Context, rule *asset.OwnerIPRule) error {
	if rule == nil || rule.ID == 0 {
		return errors.New("invalid ip rule or id")
	}
	if err := r.db.WithContext(ctx).Save(rule).Error; err != nil {
		logger.LogError(err, "REPO", "update_ip_rule", map[string]interface{}{
			"id": rule.ID,
			"ip": rule.IP,
		})
		return err
	}
	return nil
}

// DeleteIPRule 删除IP规则
func (r *OwnerRepository) DeleteIPRule(ctx context.Context, id uint64) error {
	if err := r.db.WithContext(ctx).Delete(&asset.OwnerIPRule{}, id).Error; err != nil {
		logger.LogError(err, "REPO", "delete_ip_rule", map[string]interface{}{
			"id": id,
		})
		return err
	}
	return nil
}

// ListOwnerIPRules 获取全部IP规则, 按创建次序
func (r *OwnerRepository) ListOwnerIPRules(ctx context.Context) ([]*asset.OwnerIPRule, error) {
	return listOwnerIPRules(r.db.WithContext(ctx))
}

func listOwnerIPRules(db *gorm.DB) ([]*asset.OwnerIPRule, error) {
	var rules []*asset.OwnerIPRule
	if err := db.Order("created_at asc, id asc").Find(&rules).Error; err != nil {
		logger.LogError(err, "REPO", "list_owner_ip_rules", nil)
		return nil, err
	}
	return rules, nil
}

// -----------------------------------------------------------------------------
// OwnerDomainRule (域名规则) CRUD
// -----------------------------------------------------------------------------

// CreateDomainRule 创建域名规则
func (r *OwnerRepository) CreateDomainRule(ctx context.Context, rule *asset.OwnerDomainRule) error {
	if rule == nil {
		return errors.New("domain rule is nil")
	}
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		logger.LogError(err, "REPO", "create_domain_rule", map[string]interface{}{
			"owner_id": rule.OwnerID,
			"domain":   rule.Domain,
		})
		return err
	}
	return nil
}

// GetDomainRuleByID 根据ID获取域名规则
func (r *OwnerRepository) GetDomainRuleByID(ctx context.Context, id uint64) (*asset.OwnerDomainRule, error) {
	var rule asset.OwnerDomainRule
	err := r.db.WithContext(ctx).First(&rule, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "REPO", "get_domain_rule_by_id", map[string]interface{}{
			"id": id,
		})
		return nil, err
	}
	return &rule, nil
}

// GetDomainRuleByDomain 根据归一化后的域名获取规则
func (r *OwnerRepository) GetDomainRuleByDomain(ctx context.Context, domain string) (*asset.OwnerDomainRule, error) {
	var rule asset.OwnerDomainRule
	err := r.db.WithContext(ctx).Where("domain = ?", domain).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "REPO", "get_domain_rule_by_domain", map[string]interface{}{
			"domain": domain,
		})
		return nil, err
	}
	return &rule, nil
}

// UpdateDomainRule 更新域名规则
func (r *OwnerRepository) UpdateDomainRule(ctx context.Context, rule *asset.OwnerDomainRule) error {
	if rule == nil || rule.ID == 0 {
		return errors.New("invalid domain rule or id")
	}
	if err := r.db.WithContext(ctx).Save(rule).Error; err != nil {
		logger.LogError(err, "REPO", "update_domain_rule", map[string]interface{}{
			"id":     rule.ID,
			"domain": rule.Domain,
		})
		return err
	}
	return nil
}

// DeleteDomainRule 删除域名规则
func (r *OwnerRepository) DeleteDomainRule(ctx context.Context, id uint64) error {
	if err := r.db.WithContext(ctx).Delete(&asset.OwnerDomainRule{}, id).Error; err != nil {
		logger.LogError(err, "REPO", "delete_domain_rule", map[string]interface{}{
			"id": id,
		})
		return err
	}
	return nil
}

// ListOwnerDomainRules 获取全部域名规则, 按创建次序
func (r *OwnerRepository) ListOwnerDomainRules(ctx context.Context) ([]*asset.OwnerDomainRule, error) {
	return listOwnerDomainRules(r.db.WithContext(ctx))
}

func listOwnerDomainRules(db *gorm.DB) ([]*asset.OwnerDomainRule, error) {
	var rules []*asset.OwnerDomainRule
	if err := db.Order("created_at asc, id asc").Find(&rules).Error; err != nil {
		logger.LogError(err, "REPO", "list_owner_domain_rules", nil)
		return nil, err
	}
	return rules, nil
}
