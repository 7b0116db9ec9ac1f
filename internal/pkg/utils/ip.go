package utils

import (
	"net"
	"net/netip"
	"strings"

	"github.com/deveyNull/fruitmapper/internal/model/asset"
)

// NormalizeIP 标准化服务IP：去空白、去端口, 可解析时输出规范写法
// IPv4-mapped IPv6 保持 ::ffff: 形式, 不与 IPv4 网段互通
func NormalizeIP(input string) string {
	ip := strings.TrimSpace(input)
	if ip == "" {
		return ""
	}

	// 去掉端口（host:port 或 [ipv6]:port）
	if h, _, err := net.SplitHostPort(ip); err == nil {
		ip = h
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ip
	}
	return addr.String()
}

// ParseAddressSpec 校验IP规则字面量
// 含 "/" 按CIDR解析(主机位可非零), 否则按单个IP解析
func ParseAddressSpec(spec string) (isRange bool, ok bool) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return false, false
	}
	if asset.IsRangeSpec(spec) {
		_, err := netip.ParsePrefix(spec)
		return true, err == nil
	}
	_, err := netip.ParseAddr(spec)
	return false, err == nil
}
