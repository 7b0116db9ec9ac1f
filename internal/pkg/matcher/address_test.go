package matcher

import (
	"errors"
	"testing"
	"time"

	"github.com/deveyNull/fruitmapper/internal/model/system"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func ipRule(id, owner uint64, spec string, age time.Duration) AddressRule {
	return AddressRule{ID: id, OwnerID: owner, Spec: spec, CreatedAt: t0.Add(age)}
}

func TestAddressMatcher(t *testing.T) {
	rules := []AddressRule{
		ipRule(1, 100, "10.0.0.0/8", 0),
		ipRule(2, 200, "10.1.2.0/24", time.Minute),
		ipRule(3, 300, "203.0.113.0/24", 2*time.Minute),
		ipRule(4, 400, "203.0.113.5", 3*time.Minute),
		ipRule(5, 500, "10.1.0.0/16", 4*time.Minute),
		ipRule(6, 600, "2001:db8::/32", 5*time.Minute),
		ipRule(7, 700, "2001:db8:1::/48", 6*time.Minute),
	}
	m := NewAddressMatcher(rules)

	tests := []struct {
		name      string
		ip        string
		wantOwner uint64
		wantVia   OwnerVia
	}{
		{name: "exact_beats_range", ip: "203.0.113.5", wantOwner: 400, wantVia: ViaExactIP},
		{name: "range_neighbour", ip: "203.0.113.6", wantOwner: 300, wantVia: ViaCIDR},
		{name: "longest_prefix_24", ip: "10.1.2.3", wantOwner: 200, wantVia: ViaCIDR},
		{name: "longest_prefix_16", ip: "10.1.9.9", wantOwner: 500, wantVia: ViaCIDR},
		{name: "only_slash_8", ip: "10.200.0.1", wantOwner: 100, wantVia: ViaCIDR},
		{name: "ipv6_longest_prefix", ip: "2001:db8:1::1", wantOwner: 700, wantVia: ViaCIDR},
		{name: "ipv6_short_prefix", ip: "2001:db8:2::1", wantOwner: 600, wantVia: ViaCIDR},
		{name: "mapped_ipv6_not_in_v4_range", ip: "::ffff:10.1.2.3", wantVia: ViaNone},
		{name: "no_match", ip: "192.0.2.1", wantVia: ViaNone},
		{name: "unparsable_ip", ip: "not-an-ip", wantVia: ViaNone},
		{name: "empty_ip", ip: "", wantVia: ViaNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(tt.ip)
			assert.Equal(t, tt.wantVia, got.Via)
			assert.Equal(t, tt.wantOwner, got.OwnerID)
		})
	}
}

func TestAddressMatcherTieGoesToEarliestRule(t *testing.T) {
	// 同一网段的两种写法, 前缀长度相同
	rules := []AddressRule{
		ipRule(9, 900, "198.51.100.7/24", time.Hour),
		ipRule(8, 800, "198.51.100.0/24", 0),
	}
	got := NewAddressMatcher(rules).Match("198.51.100.20")
	assert.Equal(t, uint64(800), got.OwnerID)
	assert.Equal(t, uint64(8), got.RuleID)
}

func TestAddressMatcherTieSameTimestampUsesID(t *testing.T) {
	rules := []AddressRule{
		ipRule(12, 2, "192.0.2.0/25", 0),
		ipRule(11, 1, "192.0.2.0/25 ", 0),
	}
	assert.Equal(t, uint64(1), NewAddressMatcher(rules).Match("192.0.2.1").OwnerID)
}

func TestAddressMatcherExactWinsOverAnyRange(t *testing.T) {
	// 精确规则晚于网段规则创建, 仍然优先
	rules := []AddressRule{
		ipRule(1, 1, "203.0.113.0/24", 0),
		ipRule(2, 2, "203.0.113.0/28", time.Second),
		ipRule(3, 3, "203.0.113.5", time.Hour),
	}
	assert.Equal(t, uint64(3), NewAddressMatcher(rules).Match("203.0.113.5").OwnerID)
}

func TestAddressMatcherSkipsMalformedCIDR(t *testing.T) {
	rules := []AddressRule{
		ipRule(1, 1, "10.0.0.0/33", 0),
		ipRule(2, 2, "10.0.0.0/8", time.Second),
	}
	m := NewAddressMatcher(rules)

	assert.Equal(t, uint64(2), m.Match("10.0.0.1").OwnerID)
	if assert.Len(t, m.Skipped(), 1) {
		assert.True(t, errors.Is(m.Skipped()[0], system.ErrMatchEvaluationSkipped))
	}
}

func TestAddressMatcherNormalisesInput(t *testing.T) {
	m := NewAddressMatcher([]AddressRule{ipRule(1, 1, "2001:db8::1", 0)})
	assert.Equal(t, ViaExactIP, m.Match("2001:DB8:0::1").Via)
	assert.Equal(t, ViaExactIP, m.Match(" 2001:db8::1 ").Via)
}
