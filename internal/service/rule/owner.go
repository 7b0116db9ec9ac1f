package rule

import (
	"context"
	"fmt"
	"strings"

	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/model/system"
	"github.com/deveyNull/fruitmapper/internal/pkg/logger"
	"github.com/deveyNull/fruitmapper/internal/pkg/utils"
)

// -----------------------------------------------------------------------------
// Owner
// -----------------------------------------------------------------------------

// AddOwner 创建归属方, 名称唯一
func (s *Store) AddOwner(ctx context.Context, owner *asset.Owner) error {
	if owner == nil {
		return system.NewValidationError("", "owner cannot be nil")
	}
	owner.Name = strings.TrimSpace(owner.Name)
	if owner.Name == "" {
		return system.NewValidationError("name", "owner name cannot be empty")
	}
	if owner.Status == "" {
		owner.Status = asset.OwnerStatusActive
	}
	if err := validateOwner(owner); err != nil {
		return err
	}

	existing, err := s.owners.GetOwnerByName(ctx, owner.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.LogBusinessError(system.ErrOwnerExists, "add_owner", "owner name already used", map[string]interface{}{
			"name": owner.Name,
		})
		return system.ErrOwnerExists
	}

	if err := s.owners.CreateOwner(ctx, owner); err != nil {
		return err
	}
	audit("create", "owner", owner.ID, map[string]interface{}{"name": owner.Name})
	return nil
}

// UpdateOwner 更新归属方的描述信息, 不影响归类结果
func (s *Store) UpdateOwner(ctx context.Context, owner *asset.Owner) error {
	if owner == nil || owner.ID == 0 {
		return system.NewValidationError("id", "owner id is required")
	}
	existing, err := s.owners.GetOwnerByID(ctx, owner.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return system.ErrOwnerNotFound
	}

	owner.Name = strings.TrimSpace(owner.Name)
	if owner.Name == "" {
		return system.NewValidationError("name", "owner name cannot be empty")
	}
	if err := validateOwner(owner); err != nil {
		return err
	}
	if owner.Name != existing.Name {
		dup, err := s.owners.GetOwnerByName(ctx, owner.Name)
		if err != nil {
			return err
		}
		if dup != nil {
			return system.ErrOwnerExists
		}
	}
	owner.CreatedAt = existing.CreatedAt

	if err := s.owners.UpdateOwner(ctx, owner); err != nil {
		return err
	}
	audit("update", "owner", owner.ID, map[string]interface{}{"name": owner.Name})
	return nil
}

// RemoveOwner 删除归属方及其全部规则; 仍有服务归属于它时拒绝
func (s *Store) RemoveOwner(ctx context.Context, id uint64) error {
	existing, err := s.owners.GetOwnerByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return system.ErrOwnerNotFound
	}

	count, err := s.owners.CountServicesByOwner(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.LogBusinessError(system.ErrOwnerInUse, "remove_owner", "owner still referenced by services", map[string]interface{}{
			"owner_id": id,
			"services": count,
		})
		return system.ErrOwnerInUse
	}

	if err := s.owners.DeleteOwner(ctx, id); err != nil {
		return err
	}
	audit("delete", "owner", id, map[string]interface{}{"name": existing.Name})
	return nil
}

// GetOwnerByName 按名称获取归属方
func (s *Store) GetOwnerByName(ctx context.Context, name string) (*asset.Owner, error) {
	return s.owners.GetOwnerByName(ctx, strings.TrimSpace(name))
}

// ListOwners 获取全部归属方
func (s *Store) ListOwners(ctx context.Context) ([]*asset.Owner, error) {
	return s.owners.ListOwners(ctx)
}

func validateOwner(owner *asset.Owner) error {
	switch owner.Status {
	case asset.OwnerStatusActive, asset.OwnerStatusInactive:
	default:
		return system.NewValidationError("status", fmt.Sprintf("invalid owner status: %s", owner.Status))
	}
	if owner.ValidFrom != nil && owner.ValidTo != nil && owner.ValidTo.Before(*owner.ValidFrom) {
		return system.NewValidationError("valid_to", "valid_to must not be before valid_from")
	}
	return nil
}

func (s *Store) requireOwner(ctx context.Context, ownerID uint64) error {
	owner, err := s.owners.GetOwnerByID(ctx, ownerID)
	if err != nil {
		return err
	}
	if owner == nil {
		return system.ErrOwnerNotFound
	}
	return nil
}

// -----------------------------------------------------------------------------
// OwnerIPRule
// -----------------------------------------------------------------------------

// parseIPSpec 校验IP/CIDR字面量, 返回去空白后的字面量
func parseIPSpec(spec string) (string, bool, error) {
	spec = strings.TrimSpace(spec)
	isRange, ok := utils.ParseAddressSpec(spec)
	if !ok {
		return "", false, system.NewClassifyError(system.ErrInvalidAddressFormat, "owner_ip_rule", 0,
			fmt.Sprintf("%q is neither an IP nor a CIDR", spec), nil)
	}
	return spec, isRange, nil
}

// AddOwnerIPRule 创建IP规则
func (s *Store) AddOwnerIPRule(ctx context.Context, ownerID uint64, spec string) (*asset.OwnerIPRule, error) {
	spec, isRange, err := parseIPSpec(spec)
	if err != nil {
		logger.LogBusinessError(err, "add_owner_ip_rule", "rejected ip rule", map[string]interface{}{
			"owner_id": ownerID,
		})
		return nil, err
	}
	if err := s.requireOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	existing, err := s.owners.GetIPRuleBySpec(ctx, spec)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, system.ErrRuleExists
	}

	rule := &asset.OwnerIPRule{OwnerID: ownerID, IP: spec, IsRange: isRange}
	if err := s.owners.CreateIPRule(ctx, rule); err != nil {
		return nil, err
	}
	audit("create", "owner_ip_rule", rule.ID, map[string]interface{}{
		"owner_id": ownerID,
		"ip":       spec,
	})
	return rule, nil
}

// FindOwnerIPRule 按字面量查找IP规则, 不存在返回 nil
func (s *Store) FindOwnerIPRule(ctx context.Context, spec string) (*asset.OwnerIPRule, error) {
	return s.owners.GetIPRuleBySpec(ctx, strings.TrimSpace(spec))
}

// UpdateOwnerIPRule 修改IP规则的字面量或所属归属方
func (s *Store) UpdateOwnerIPRule(ctx context.Context, id, ownerID uint64, spec string) (*asset.OwnerIPRule, error) {
	rule, err := s.owners.GetIPRuleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, system.ErrRuleNotFound
	}

	spec, isRange, err := parseIPSpec(spec)
	if err != nil {
		logger.LogBusinessError(err, "update_owner_ip_rule", "rejected ip rule", map[string]interface{}{
			"rule_id": id,
		})
		return nil, err
	}
	if ownerID != rule.OwnerID {
		if err := s.requireOwner(ctx, ownerID); err != nil {
			return nil, err
		}
	}
	if spec != rule.IP {
		dup, err := s.owners.GetIPRuleBySpec(ctx, spec)
		if err != nil {
			return nil, err
		}
		if dup != nil {
			return nil, system.ErrRuleExists
		}
	}

	rule.OwnerID = ownerID
	rule.IP = spec
	rule.IsRange = isRange
	if err := s.owners.UpdateIPRule(ctx, rule); err != nil {
		return nil, err
	}
	audit("update", "owner_ip_rule", rule.ID, map[string]interface{}{
		"owner_id": ownerID,
		"ip":       spec,
	})
	return rule, nil
}

// RemoveOwnerIPRule 删除IP规则
func (s *Store) RemoveOwnerIPRule(ctx context.Context, id uint64) error {
	rule, err := s.owners.GetIPRuleByID(ctx, id)
	if err != nil {
		return err
	}
	if rule == nil {
		return system.ErrRuleNotFound
	}
	if err := s.owners.DeleteIPRule(ctx, id); err != nil {
		return err
	}
	audit("delete", "owner_ip_rule", id, map[string]interface{}{"ip": rule.IP})
	return nil
}

// -----------------------------------------------------------------------------
// OwnerDomainRule
// -----------------------------------------------------------------------------

func normalizeDomainRule(domain string) (string, error) {
	normalized := utils.NormalizeDomain(domain)
	if normalized == "" {
		return "", system.NewClassifyError(system.ErrInvalidAddressFormat, "owner_domain_rule", 0,
			fmt.Sprintf("%q is not a domain", domain), nil)
	}
	return normalized, nil
}

// AddOwnerDomainRule 创建域名规则, 域名先归一化再查重
func (s *Store) AddOwnerDomainRule(ctx context.Context, ownerID uint64, domain string, includeSubdomains bool) (*asset.OwnerDomainRule, error) {
	normalized, err := normalizeDomainRule(domain)
	if err != nil {
		logger.LogBusinessError(err, "add_owner_domain_rule", "rejected domain rule", map[string]interface{}{
			"owner_id": ownerID,
		})
		return nil, err
	}
	if err := s.requireOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	existing, err := s.owners.GetDomainRuleByDomain(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, system.ErrRuleExists
	}

	rule := &asset.OwnerDomainRule{OwnerID: ownerID, Domain: normalized, IncludeSubdomains: includeSubdomains}
	if err := s.owners.CreateDomainRule(ctx, rule); err != nil {
		return nil, err
	}
	audit("create", "owner_domain_rule", rule.ID, map[string]interface{}{
		"owner_id":           ownerID,
		"domain":             normalized,
		"include_subdomains": includeSubdomains,
	})
	return rule, nil
}

// FindOwnerDomainRule 按归一化后的域名查找域名规则, 不存在返回 nil
func (s *Store) FindOwnerDomainRule(ctx context.Context, domain string) (*asset.OwnerDomainRule, error) {
	return s.owners.GetDomainRuleByDomain(ctx, utils.NormalizeDomain(domain))
}

// UpdateOwnerDomainRule 修改域名规则
func (s *Store) UpdateOwnerDomainRule(ctx context.Context, id, ownerID uint64, domain string, includeSubdomains bool) (*asset.OwnerDomainRule, error) {
	rule, err := s.owners.GetDomainRuleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, system.ErrRuleNotFound
	}

	normalized, err := normalizeDomainRule(domain)
	if err != nil {
		logger.LogBusinessError(err, "update_owner_domain_rule", "rejected domain rule", map[string]interface{}{
			"rule_id": id,
		})
		return nil, err
	}
	if ownerID != rule.OwnerID {
		if err := s.requireOwner(ctx, ownerID); err != nil {
			return nil, err
		}
	}
	if normalized != rule.Domain {
		dup, err := s.owners.GetDomainRuleByDomain(ctx, normalized)
		if err != nil {
			return nil, err
		}
		if dup != nil {
			return nil, system.ErrRuleExists
		}
	}

	rule.OwnerID = ownerID
	rule.Domain = normalized
	rule.IncludeSubdomains = includeSubdomains
	if err := s.owners.UpdateDomainRule(ctx, rule); err != nil {
		return nil, err
	}
	audit("update", "owner_domain_rule", rule.ID, map[string]interface{}{
		"owner_id":           ownerID,
		"domain":             normalized,
		"include_subdomains": includeSubdomains,
	})
	return rule, nil
}

// RemoveOwnerDomainRule 删除域名规则
func (s *Store) RemoveOwnerDomainRule(ctx context.Context, id uint64) error {
	rule, err := s.owners.GetDomainRuleByID(ctx, id)
	if err != nil {
		return err
	}
	if rule == nil {
		return system.ErrRuleNotFound
	}
	if err := s.owners.DeleteDomainRule(ctx, id); err != nil {
		return err
	}
	audit("delete", "owner_domain_rule", id, map[string]interface{}{"domain": rule.Domain})
	return nil
}

// ReplaceOwnerRules 校验后整体替换归属方的IP和域名规则(导入时使用)
func (s *Store) ReplaceOwnerRules(ctx context.Context, ownerID uint64, specs []string, domains []DomainSpec) error {
	if err := s.requireOwner(ctx, ownerID); err != nil {
		return err
	}

	ipRules := make([]*asset.OwnerIPRule, 0, len(specs))
	for _, raw := range specs {
		spec, isRange, err := parseIPSpec(raw)
		if err != nil {
			return err
		}
		ipRules = append(ipRules, &asset.OwnerIPRule{IP: spec, IsRange: isRange})
	}
	domainRules := make([]*asset.OwnerDomainRule, 0, len(domains))
	for _, d := range domains {
		normalized, err := normalizeDomainRule(d.Domain)
		if err != nil {
			return err
		}
		domainRules = append(domainRules, &asset.OwnerDomainRule{Domain: normalized, IncludeSubdomains: d.IncludeSubdomains})
	}

	if err := s.owners.ReplaceOwnerRules(ctx, ownerID, ipRules, domainRules); err != nil {
		return err
	}
	audit("replace", "owner_rules", ownerID, map[string]interface{}{
		"ip_rules":     len(ipRules),
		"domain_rules": len(domainRules),
	})
	return nil
}

// DomainSpec 待导入的域名规则
type DomainSpec struct {
	Domain            string
	IncludeSubdomains bool
}
