package matcher

import (
	"strings"
	"time"

	"github.com/deveyNull/fruitmapper/internal/model/system"
	"github.com/deveyNull/fruitmapper/internal/pkg/utils"
)

// DomainRule 归属方域名规则
type DomainRule struct {
	ID                uint64
	OwnerID           uint64
	Domain            string
	IncludeSubdomains bool
	CreatedAt         time.Time
}

type suffixRule struct {
	DomainRule
	suffix string // "." + domain
}

// DomainMatcher 域名归属匹配器
// 精确域名优先; 否则在包含子域名的规则中取最长的后缀, 长度相同时先创建者胜
type DomainMatcher struct {
	exact    map[string]DomainRule
	suffixes []suffixRule
	skipped  []error
}

// NewDomainMatcher 预处理规则
func NewDomainMatcher(rules []DomainRule) *DomainMatcher {
	sorted := append([]DomainRule(nil), rules...)
	sortByCreation(sorted, func(r DomainRule) ruleOrder { return ruleOrder{r.ID, r.CreatedAt} })

	m := &DomainMatcher{exact: make(map[string]DomainRule)}
	for _, r := range sorted {
		d := utils.NormalizeDomain(r.Domain)
		if d == "" {
			m.skipped = append(m.skipped,
				system.NewClassifyError(system.ErrMatchEvaluationSkipped, "owner_domain_rule", r.ID, "empty domain", nil))
			continue
		}
		if _, dup := m.exact[d]; !dup {
			m.exact[d] = r
		}
		if r.IncludeSubdomains {
			m.suffixes = append(m.suffixes, suffixRule{DomainRule: r, suffix: "." + d})
		}
	}
	return m
}

// Skipped 构造时被跳过的规则
func (m *DomainMatcher) Skipped() []error {
	return m.skipped
}

// Match 查找域名的归属方
func (m *DomainMatcher) Match(domain string) OwnerMatch {
	d := utils.NormalizeDomain(domain)
	if d == "" {
		return OwnerMatch{}
	}
	if r, ok := m.exact[d]; ok {
		return OwnerMatch{OwnerID: r.OwnerID, RuleID: r.ID, Via: ViaExactDomain}
	}

	var best *suffixRule
	for i := range m.suffixes {
		c := &m.suffixes[i]
		if !strings.HasSuffix(d, c.suffix) {
			continue
		}
		if best == nil || len(c.suffix) > len(best.suffix) {
			best = c
		}
	}
	if best == nil {
		return OwnerMatch{}
	}
	return OwnerMatch{OwnerID: best.OwnerID, RuleID: best.ID, Via: ViaSubdomain}
}
