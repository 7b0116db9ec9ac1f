package matcher

import (
	"net/netip"
	"strings"
	"time"

	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/model/system"
	"github.com/deveyNull/fruitmapper/internal/pkg/utils"
)

// AddressRule 归属方IP规则(单个IP或CIDR)
type AddressRule struct {
	ID        uint64
	OwnerID   uint64
	Spec      string
	CreatedAt time.Time
}

type prefixRule struct {
	AddressRule
	prefix netip.Prefix
}

// AddressMatcher IP归属匹配器
// 精确IP规则优先; 否则取包含该IP的最长前缀网段, 前缀相同时先创建者胜
type AddressMatcher struct {
	exact   map[string]AddressRule
	ranges  []prefixRule
	skipped []error
}

// NewAddressMatcher 预处理规则; 无法解析的网段不参与匹配, 记录在 Skipped 中
func NewAddressMatcher(rules []AddressRule) *AddressMatcher {
	sorted := append([]AddressRule(nil), rules...)
	sortByCreation(sorted, func(r AddressRule) ruleOrder { return ruleOrder{r.ID, r.CreatedAt} })

	m := &AddressMatcher{exact: make(map[string]AddressRule)}
	for _, r := range sorted {
		spec := strings.TrimSpace(r.Spec)
		if !asset.IsRangeSpec(spec) {
			key := utils.NormalizeIP(spec)
			if _, dup := m.exact[key]; !dup {
				m.exact[key] = r
			}
			continue
		}
		p, err := netip.ParsePrefix(spec)
		if err != nil {
			m.skipped = append(m.skipped,
				system.NewClassifyError(system.ErrMatchEvaluationSkipped, "owner_ip_rule", r.ID, "invalid cidr "+spec, err))
			continue
		}
		m.ranges = append(m.ranges, prefixRule{AddressRule: r, prefix: p.Masked()})
	}
	return m
}

// Skipped 构造时被跳过的规则
func (m *AddressMatcher) Skipped() []error {
	return m.skipped
}

// Match 查找IP的归属方; IP无法解析时视为未命中
func (m *AddressMatcher) Match(ip string) OwnerMatch {
	key := utils.NormalizeIP(ip)
	if key == "" {
		return OwnerMatch{}
	}
	if r, ok := m.exact[key]; ok {
		return OwnerMatch{OwnerID: r.OwnerID, RuleID: r.ID, Via: ViaExactIP}
	}

	addr, err := netip.ParseAddr(key)
	if err != nil {
		return OwnerMatch{}
	}

	var best *prefixRule
	for i := range m.ranges {
		c := &m.ranges[i]
		if !c.prefix.Contains(addr) {
			continue
		}
		// ranges 已按创建次序排列, 只有更长的前缀才能替换
		if best == nil || c.prefix.Bits() > best.prefix.Bits() {
			best = c
		}
	}
	if best == nil {
		return OwnerMatch{}
	}
	return OwnerMatch{OwnerID: best.OwnerID, RuleID: best.ID, Via: ViaCIDR}
}
