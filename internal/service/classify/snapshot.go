package classify

import (
	"fmt"
	"time"

	"github.com/deveyNull/fruitmapper/internal/model/system"
	"github.com/deveyNull/fruitmapper/internal/pkg/matcher"
	assetrepo "github.com/deveyNull/fruitmapper/internal/repo/mysql/asset"
)

// Snapshot 编译后的规则集, 构造后只读, 可在多个 worker 间共享
type Snapshot struct {
	address     *matcher.AddressMatcher
	domain      *matcher.DomainMatcher
	fingerprint *matcher.FingerprintMatcher
	skipped     []error
}

// NewSnapshot 把数据库中的规则转换为匹配器
func NewSnapshot(rules *assetrepo.RuleSnapshot, regexTimeout time.Duration) *Snapshot {
	if rules == nil {
		rules = &assetrepo.RuleSnapshot{}
	}

	addressRules := make([]matcher.AddressRule, 0, len(rules.IPRules))
	for _, r := range rules.IPRules {
		addressRules = append(addressRules, matcher.AddressRule{
			ID:        r.ID,
			OwnerID:   r.OwnerID,
			Spec:      r.IP,
			CreatedAt: r.CreatedAt,
		})
	}

	domainRules := make([]matcher.DomainRule, 0, len(rules.DomainRules))
	for _, r := range rules.DomainRules {
		domainRules = append(domainRules, matcher.DomainRule{
			ID:                r.ID,
			OwnerID:           r.OwnerID,
			Domain:            r.Domain,
			IncludeSubdomains: r.IncludeSubdomains,
			CreatedAt:         r.CreatedAt,
		})
	}

	var skipped []error
	fingerprintRules := make([]matcher.FingerprintRule, 0, len(rules.Fruits))
	for _, f := range rules.Fruits {
		kind, ok := matcher.ParseMatchKind(f.MatchType)
		if !ok {
			skipped = append(skipped, system.NewClassifyError(system.ErrMatchEvaluationSkipped, "fruit", f.ID,
				fmt.Sprintf("unknown match type %q", f.MatchType), nil))
			continue
		}
		fingerprintRules = append(fingerprintRules, matcher.FingerprintRule{
			FruitID:     f.ID,
			FruitTypeID: f.FruitTypeID,
			Name:        f.Name,
			Kind:        kind,
			Pattern:     f.Regex(),
			CreatedAt:   f.CreatedAt,
		})
	}

	s := &Snapshot{
		address:     matcher.NewAddressMatcher(addressRules),
		domain:      matcher.NewDomainMatcher(domainRules),
		fingerprint: matcher.NewFingerprintMatcher(fingerprintRules, regexTimeout),
	}
	s.skipped = append(s.skipped, s.address.Skipped()...)
	s.skipped = append(s.skipped, s.domain.Skipped()...)
	s.skipped = append(s.skipped, skipped...)
	s.skipped = append(s.skipped, s.fingerprint.Skipped()...)
	return s
}

// Skipped 构造时被跳过的规则
func (s *Snapshot) Skipped() []error {
	return s.skipped
}
