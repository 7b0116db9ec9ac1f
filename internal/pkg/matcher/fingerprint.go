package matcher

import (
	"fmt"
	"time"

	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/model/system"

	"github.com/dlclark/regexp2"
)

// DefaultRegexTimeout 单条指纹正则的默认匹配超时
const DefaultRegexTimeout = 100 * time.Millisecond

// FingerprintRule 一条指纹规则(即一个 Fruit)
type FingerprintRule struct {
	FruitID     uint64
	FruitTypeID uint64
	Name        string
	Kind        MatchKind
	Pattern     string
	CreatedAt   time.Time
}

// FingerprintMatch 指纹匹配结果
type FingerprintMatch struct {
	FruitID     uint64
	FruitTypeID uint64
	Kind        MatchKind // 命中的信号来源, 兜底时为 KindUnknown
	Fallback    bool      // 是否为兜底指纹
	Found       bool
}

type compiledRule struct {
	FingerprintRule
	re *regexp2.Regexp
}

// FingerprintMatcher 指纹匹配器
type FingerprintMatcher struct {
	byKind  [kindCount][]compiledRule
	unknown *FingerprintRule
	skipped []error
}

// CompilePattern 按指纹规则的语法编译正则
// RE2 模式接受 (?P<name>...) 命名分组, 环视和反向引用仍然可用
func CompilePattern(pattern string, timeout time.Duration) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.RE2)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultRegexTimeout
	}
	re.MatchTimeout = timeout
	return re, nil
}

// NewFingerprintMatcher 编译全部指纹规则
// 编译失败的规则被跳过并记录; 兜底指纹取名为 unknown 的最早一条, 没有则取最早的 unknown 类型
func NewFingerprintMatcher(rules []FingerprintRule, timeout time.Duration) *FingerprintMatcher {
	sorted := append([]FingerprintRule(nil), rules...)
	sortByCreation(sorted, func(r FingerprintRule) ruleOrder { return ruleOrder{r.FruitID, r.CreatedAt} })

	m := &FingerprintMatcher{}
	var firstUnknownKind *FingerprintRule
	for i := range sorted {
		r := sorted[i]
		if r.Name == asset.UnknownFruitName && m.unknown == nil {
			m.unknown = &sorted[i]
		}
		if !r.Kind.Active() {
			if firstUnknownKind == nil {
				firstUnknownKind = &sorted[i]
			}
			continue
		}
		re, err := CompilePattern(r.Pattern, timeout)
		if err != nil {
			m.skipped = append(m.skipped,
				system.NewClassifyError(system.ErrMatchEvaluationSkipped, "fruit", r.FruitID, "regex does not compile", err))
			continue
		}
		m.byKind[r.Kind] = append(m.byKind[r.Kind], compiledRule{FingerprintRule: r, re: re})
	}
	if m.unknown == nil {
		m.unknown = firstUnknownKind
	}
	return m
}

// Skipped 构造时被跳过的规则
func (m *FingerprintMatcher) Skipped() []error {
	return m.skipped
}

// Match 按 banner -> html -> http_header 的顺序逐条搜索, 第一条命中即返回
// 正则求值出错(如超时)的规则被跳过, 错误随结果返回
func (m *FingerprintMatcher) Match(sig Signals) (FingerprintMatch, []error) {
	var skipped []error
	for _, kind := range activeKinds {
		text, ok := sig.Text(kind)
		if !ok {
			continue
		}
		for _, r := range m.byKind[kind] {
			hit, err := r.re.MatchString(text)
			if err != nil {
				skipped = append(skipped, system.NewClassifyError(system.ErrMatchEvaluationSkipped, "fruit", r.FruitID,
					fmt.Sprintf("%s match failed", kind), err))
				continue
			}
			if hit {
				return FingerprintMatch{FruitID: r.FruitID, FruitTypeID: r.FruitTypeID, Kind: kind, Found: true}, skipped
			}
		}
	}

	if m.unknown != nil {
		return FingerprintMatch{
			FruitID:     m.unknown.FruitID,
			FruitTypeID: m.unknown.FruitTypeID,
			Kind:        KindUnknown,
			Fallback:    true,
			Found:       true,
		}, skipped
	}
	return FingerprintMatch{}, skipped
}
