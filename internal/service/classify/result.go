package classify

import (
	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/pkg/matcher"
)

// Result 单个服务的归类结果
type Result struct {
	ServiceID      uint64
	Classification asset.Classification // 应写回的派生字段
	Owner          matcher.OwnerMatch
	Identity       matcher.FingerprintMatch
	Changed        bool    // 与库中已存值不同
	Skipped        []error // 匹配时被跳过的规则
}

// Classify 用给定规则集对服务做一次完整归类, 不读写存储
// 同一 (服务, 规则集) 多次调用结果相同
func Classify(svc *asset.Service, snap *Snapshot) Result {
	return classifyScoped(svc, snap, ScopeAll)
}

// classifyScoped 只计算范围内的字段, 范围外的字段沿用已存值
func classifyScoped(svc *asset.Service, snap *Snapshot, scope Scope) Result {
	current := svc.Classification()
	res := Result{ServiceID: svc.ID, Classification: current}

	if scope.includesOwner() {
		res.Owner = matchOwner(svc, snap)
		res.Classification.OwnerID = nil
		if res.Owner.Found() {
			res.Classification.OwnerID = uint64Ptr(res.Owner.OwnerID)
		}
	}

	if scope.includesIdentity() {
		sig := matcher.NewSignals(svc.Banner, svc.HTTPData)
		res.Identity, res.Skipped = snap.fingerprint.Match(sig)
		res.Classification.FruitID = nil
		res.Classification.FruitTypeID = nil
		if res.Identity.Found {
			// fruit_type_id 永远取自指纹
			res.Classification.FruitID = uint64Ptr(res.Identity.FruitID)
			res.Classification.FruitTypeID = uint64Ptr(res.Identity.FruitTypeID)
		}
	}

	res.Changed = !res.Classification.Equal(current)
	return res
}

// matchOwner IP 优先, 未命中再按域名
func matchOwner(svc *asset.Service, snap *Snapshot) matcher.OwnerMatch {
	if m := snap.address.Match(svc.IP); m.Found() {
		return m
	}
	if svc.Domain != nil {
		return snap.domain.Match(*svc.Domain)
	}
	return matcher.OwnerMatch{}
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}
