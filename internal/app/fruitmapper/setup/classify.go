/**
 * 初始化:归类引擎模块
 * @description: 规则存储、归类编排、一致性维护和种子导入的组装
 */
package setup

import (
	"github.com/deveyNull/fruitmapper/internal/config"
	"github.com/deveyNull/fruitmapper/internal/pkg/logger"
	assetRepo "github.com/deveyNull/fruitmapper/internal/repo/mysql/asset"
	"github.com/deveyNull/fruitmapper/internal/service/classify"
	"github.com/deveyNull/fruitmapper/internal/service/rule"
	"github.com/deveyNull/fruitmapper/internal/service/seed"

	"gorm.io/gorm"
)

// BuildClassifyModule 构建归类引擎模块
func BuildClassifyModule(db *gorm.DB, lock classify.Locker, cfg *config.ClassifierConfig) *ClassifyModule {
	logger.WithFields(map[string]interface{}{
		"path":      "setup.classify",
		"operation": "build_module",
		"func_name": "setup.BuildClassifyModule",
	}).Info("开始初始化归类引擎模块")

	opts := classify.OptionsFromConfig(cfg)

	// 1. Repository 初始化
	ownerRepo := assetRepo.NewOwnerRepository(db)
	fruitRepo := assetRepo.NewFruitRepository(db)
	serviceRepo := assetRepo.NewServiceRepository(db)
	snapshotRepo := assetRepo.NewSnapshotRepository(db)

	// 2. Service 初始化
	ruleStore := rule.NewStore(ownerRepo, fruitRepo, opts.RegexTimeout)
	orchestrator := classify.NewOrchestrator(snapshotRepo, serviceRepo, lock, opts)
	maintainer := classify.NewMaintainer(ruleStore, orchestrator)
	importer := seed.NewImporter(ruleStore, serviceRepo, orchestrator)

	logger.WithFields(map[string]interface{}{
		"path":        "setup.classify",
		"operation":   "build_module",
		"func_name":   "setup.BuildClassifyModule",
		"chunk_size":  opts.ChunkSize,
		"workers":     opts.Workers,
		"regex_limit": opts.RegexTimeout.String(),
	}).Info("归类引擎模块初始化完成")

	return &ClassifyModule{
		ServiceRepo:  serviceRepo,
		SnapshotRepo: snapshotRepo,

		RuleStore:    ruleStore,
		Orchestrator: orchestrator,
		Maintainer:   maintainer,
		Importer:     importer,
	}
}
