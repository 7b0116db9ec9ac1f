/**
 * 初始化
 * @description: fruitmapper 程序初始化相关的类型定义
 */
package setup

import (
	assetRepo "github.com/deveyNull/fruitmapper/internal/repo/mysql/asset"
	"github.com/deveyNull/fruitmapper/internal/service/classify"
	"github.com/deveyNull/fruitmapper/internal/service/rule"
	"github.com/deveyNull/fruitmapper/internal/service/seed"
)

// ClassifyModule 是归类引擎模块的聚合输出
// 规则写操作必须经 Maintainer 进入, 直接调用 RuleStore 不会触发重算
type ClassifyModule struct {
	// Repositories
	ServiceRepo  *assetRepo.ServiceRepository
	SnapshotRepo *assetRepo.SnapshotRepository

	// Services
	RuleStore    *rule.Store
	Orchestrator *classify.Orchestrator
	Maintainer   *classify.Maintainer
	Importer     *seed.Importer
}
