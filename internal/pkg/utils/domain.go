package utils

import "strings"

// NormalizeDomain 域名归一化
// 小写, 去协议头, 去路径/查询串/端口, 去结尾的点, 去开头的 www.
func NormalizeDomain(input string) string {
	d := strings.ToLower(strings.TrimSpace(input))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndex(d, "@"); i >= 0 {
		d = d[i+1:]
	}
	if i := strings.LastIndex(d, ":"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimSuffix(d, ".")
	d = strings.TrimPrefix(d, "www.")
	return d
}

// IsBaseDomain 是否为一级注册域(恰好一个点), 导入时据此默认包含子域名
func IsBaseDomain(domain string) bool {
	return strings.Count(domain, ".") == 1
}
