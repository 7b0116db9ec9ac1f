package classify

import (
	"sync"
	"time"

	"github.com/deveyNull/fruitmapper/internal/pkg/matcher"

	"github.com/google/uuid"
)

// identityNone 未分配指纹时的统计键
const identityNone = "none"

// Report 一次全量重算的统计
type Report struct {
	RunID        string         `json:"run_id"`
	Scope        string         `json:"scope"`
	Scanned      int            `json:"scanned"`       // 遍历的服务数
	Updated      int            `json:"updated"`       // 派生字段有变化并写回的服务数
	Unchanged    int            `json:"unchanged"`     // 无变化的服务数
	SkippedRules int            `json:"skipped_rules"` // 构造规则集时跳过的规则数
	SkippedEvals int            `json:"skipped_evals"` // 匹配时求值失败(如正则超时)的次数
	OwnerVia     map[string]int `json:"owner_via"`     // 按归属来源统计: ip_exact / cidr / domain_exact / subdomain / none
	IdentityKind map[string]int `json:"identity_kind"` // 按指纹来源统计: banner / html / http_header / unknown / none
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration"`

	mu sync.Mutex
}

func newReport(scope Scope) *Report {
	return &Report{
		RunID:        uuid.NewString(),
		Scope:        scope.String(),
		OwnerVia:     make(map[string]int),
		IdentityKind: make(map[string]int),
		StartedAt:    time.Now(),
	}
}

// add 计入一个服务的结果, 可并发调用
func (r *Report) add(res Result, scope Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Scanned++
	if res.Changed {
		r.Updated++
	} else {
		r.Unchanged++
	}
	r.SkippedEvals += len(res.Skipped)

	if scope.includesOwner() {
		r.OwnerVia[res.Owner.Via.String()]++
	}
	if scope.includesIdentity() {
		r.IdentityKind[identityKey(res.Identity)]++
	}
}

func (r *Report) finish() *Report {
	r.Duration = time.Since(r.StartedAt)
	return r
}

// Fields 日志字段
func (r *Report) Fields() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]interface{}{
		"run_id":        r.RunID,
		"scope":         r.Scope,
		"scanned":       r.Scanned,
		"updated":       r.Updated,
		"unchanged":     r.Unchanged,
		"skipped_rules": r.SkippedRules,
		"skipped_evals": r.SkippedEvals,
		"owner_via":     copyCounts(r.OwnerVia),
		"identity_kind": copyCounts(r.IdentityKind),
		"duration_ms":   r.Duration.Milliseconds(),
	}
}

func identityKey(m matcher.FingerprintMatch) string {
	if !m.Found {
		return identityNone
	}
	return m.Kind.String()
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
