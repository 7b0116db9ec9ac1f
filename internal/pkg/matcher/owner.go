package matcher

import (
	"sort"
	"time"
)

// OwnerVia 归属匹配方式
type OwnerVia uint8

const (
	ViaNone OwnerVia = iota
	ViaExactIP
	ViaCIDR
	ViaExactDomain
	ViaSubdomain
)

// String 用于日志和统计
func (v OwnerVia) String() string {
	switch v {
	case ViaExactIP:
		return "ip_exact"
	case ViaCIDR:
		return "cidr"
	case ViaExactDomain:
		return "domain_exact"
	case ViaSubdomain:
		return "subdomain"
	}
	return "none"
}

// OwnerMatch 归属匹配结果
type OwnerMatch struct {
	OwnerID uint64
	RuleID  uint64
	Via     OwnerVia
}

// Found 是否命中
func (m OwnerMatch) Found() bool {
	return m.Via != ViaNone
}

// ruleOrder 规则的创建次序, 用于同等优先级时"先创建者胜"
type ruleOrder struct {
	ID        uint64
	CreatedAt time.Time
}

func (a ruleOrder) before(b ruleOrder) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func sortByCreation[T any](items []T, order func(T) ruleOrder) {
	sort.SliceStable(items, func(i, j int) bool {
		return order(items[i]).before(order(items[j]))
	})
}
