// Package matcher 归类引擎的纯匹配逻辑
// 所有匹配器在构造时完成规则预处理, 之后只读, 可被多个协程并发使用
package matcher

import "github.com/deveyNull/fruitmapper/internal/model/asset"

// MatchKind 指纹匹配类型
type MatchKind uint8

const (
	// KindUnknown 兜底指纹, 不参与正则匹配
	KindUnknown MatchKind = iota
	// KindBanner 匹配服务横幅
	KindBanner
	// KindHTML 匹配 http_data 中的 html
	KindHTML
	// KindHTTPHeader 匹配拼接后的响应头
	KindHTTPHeader

	kindCount
)

// activeKinds 指纹匹配的固定顺序: banner -> html -> http_header
var activeKinds = [...]MatchKind{KindBanner, KindHTML, KindHTTPHeader}

// ParseMatchKind 解析数据库中的 match_type
func ParseMatchKind(s string) (MatchKind, bool) {
	switch s {
	case asset.MatchTypeBanner:
		return KindBanner, true
	case asset.MatchTypeHTML:
		return KindHTML, true
	case asset.MatchTypeHTTPHeader:
		return KindHTTPHeader, true
	case asset.MatchTypeUnknown:
		return KindUnknown, true
	}
	return KindUnknown, false
}

// String 返回数据库存储值
func (k MatchKind) String() string {
	switch k {
	case KindBanner:
		return asset.MatchTypeBanner
	case KindHTML:
		return asset.MatchTypeHTML
	case KindHTTPHeader:
		return asset.MatchTypeHTTPHeader
	}
	return asset.MatchTypeUnknown
}

// Active 是否为需要正则的匹配类型
func (k MatchKind) Active() bool {
	return k == KindBanner || k == KindHTML || k == KindHTTPHeader
}
