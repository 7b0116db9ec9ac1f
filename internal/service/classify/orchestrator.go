// 自动归类引擎
// 单服务归类、全量重算; 规则变更后的重算入口见 maintainer.go
package classify

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/deveyNull/fruitmapper/internal/config"
	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/model/system"
	"github.com/deveyNull/fruitmapper/internal/pkg/logger"
	"github.com/deveyNull/fruitmapper/internal/pkg/matcher"
	assetrepo "github.com/deveyNull/fruitmapper/internal/repo/mysql/asset"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// RuleSource 读取一致的规则快照
type RuleSource interface {
	LoadRuleSnapshot(ctx context.Context) (*assetrepo.RuleSnapshot, error)
}

// ServiceStore 服务存储
type ServiceStore interface {
	CreateService(ctx context.Context, svc *asset.Service) error
	GetServiceByID(ctx context.Context, id uint64) (*asset.Service, error)
	UpdateServiceFields(ctx context.Context, svc *asset.Service) error
	DeleteService(ctx context.Context, id uint64) error
	ListServices(ctx context.Context, filter asset.ServiceFilter) ([]*asset.Service, error)
	UpdateServiceClassification(ctx context.Context, id uint64, c asset.Classification) error
	UpdateFruitTypeByFruit(ctx context.Context, fruitID, fruitTypeID uint64) (int64, error)
}

// Locker 规则集锁; 规则变更和重算互斥
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Options 引擎运行参数
type Options struct {
	ChunkSize    int
	Workers      int
	RegexTimeout time.Duration
}

// OptionsFromConfig 从配置构造运行参数
func OptionsFromConfig(cfg *config.ClassifierConfig) Options {
	return Options{
		ChunkSize:    cfg.ChunkSize,
		Workers:      cfg.Workers,
		RegexTimeout: cfg.RegexTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 500
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.RegexTimeout <= 0 {
		o.RegexTimeout = matcher.DefaultRegexTimeout
	}
	return o
}

// Orchestrator 归类编排器
type Orchestrator struct {
	rules    RuleSource
	services ServiceStore
	lock     Locker
	opts     atomic.Pointer[Options]
}

// NewOrchestrator 创建归类编排器
func NewOrchestrator(rules RuleSource, services ServiceStore, lock Locker, opts Options) *Orchestrator {
	o := &Orchestrator{rules: rules, services: services, lock: lock}
	o.SetOptions(opts)
	return o
}

// SetOptions 运行时替换参数, 下一次调用生效
func (o *Orchestrator) SetOptions(opts Options) {
	opts = opts.withDefaults()
	o.opts.Store(&opts)
}

// Options 当前参数
func (o *Orchestrator) Options() Options {
	return *o.opts.Load()
}

// LoadSnapshot 读取并编译当前规则集, 被跳过的规则逐条记录
func (o *Orchestrator) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	rules, err := o.rules.LoadRuleSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	snap := NewSnapshot(rules, o.Options().RegexTimeout)
	for _, skipped := range snap.Skipped() {
		logSkipped(skipped, 0)
	}
	return snap, nil
}

// ClassifyService 对单个服务归类并写回
func (o *Orchestrator) ClassifyService(ctx context.Context, serviceID uint64) (*Result, error) {
	unlock, err := o.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return o.classifyServiceLocked(ctx, serviceID)
}

func (o *Orchestrator) classifyServiceLocked(ctx context.Context, serviceID uint64) (*Result, error) {
	svc, err := o.services.GetServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, system.ErrServiceNotFound
	}

	snap, err := o.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	res := Classify(svc, snap)
	for _, skipped := range res.Skipped {
		logSkipped(skipped, svc.ID)
	}
	if res.Changed {
		if err := o.write(ctx, svc.ID, res.Classification); err != nil {
			return nil, err
		}
	}

	logger.LogBusinessOperation("classify_service", "success", "service classified", map[string]interface{}{
		"service_id": svc.ID,
		"owner_via":  res.Owner.Via.String(),
		"identity":   identityKey(res.Identity),
		"changed":    res.Changed,
	})
	return &res, nil
}

// ReclassifyAll 用同一份规则快照重算全部服务, 只写回有变化的服务
func (o *Orchestrator) ReclassifyAll(ctx context.Context, scope Scope) (*Report, error) {
	unlock, err := o.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return o.reclassifyLocked(ctx, scope)
}

func (o *Orchestrator) reclassifyLocked(ctx context.Context, scope Scope) (*Report, error) {
	opts := o.Options()
	report := newReport(scope)
	log := logger.WithFields(logrus.Fields{
		"type":   logger.BusinessLog,
		"run_id": report.RunID,
		"scope":  report.Scope,
	})
	log.Debug("reclassify started")

	snap, err := o.LoadSnapshot(ctx)
	if err != nil {
		return report.finish(), err
	}
	report.SkippedRules = len(snap.Skipped())

	filter := asset.ServiceFilter{Limit: opts.ChunkSize}
	for {
		if err := ctx.Err(); err != nil {
			return report.finish(), err
		}
		chunk, err := o.services.ListServices(ctx, filter)
		if err != nil {
			return report.finish(), err
		}
		if len(chunk) == 0 {
			break
		}
		if err := o.processChunk(ctx, snap, scope, chunk, opts.Workers, report); err != nil {
			logger.LogBusinessError(err, "reclassify_all", "reclassify aborted", report.Fields())
			return report.finish(), err
		}
		filter.AfterID = chunk[len(chunk)-1].ID
		if len(chunk) < opts.ChunkSize {
			break
		}
	}

	report.finish()
	logger.LogBusinessOperation("reclassify_all", "success", "reclassify finished", report.Fields())
	return report, nil
}

// processChunk 并行归类一批服务; 任一写回失败即取消本批其余任务
func (o *Orchestrator) processChunk(ctx context.Context, snap *Snapshot, scope Scope, chunk []*asset.Service, workers int, report *Report) error {
	p := pool.New().WithContext(ctx).WithMaxGoroutines(workers).WithCancelOnError().WithFirstError()
	for _, svc := range chunk {
		svc := svc // go1.21: 每次迭代独立的循环变量
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := classifyScoped(svc, snap, scope)
			for _, skipped := range res.Skipped {
				logSkipped(skipped, svc.ID)
			}
			if res.Changed {
				if err := o.write(ctx, svc.ID, res.Classification); err != nil {
					return err
				}
			}
			report.add(res, scope)
			return nil
		})
	}
	return p.Wait()
}

// reassignFruitTypeLocked 指纹换类别且匹配条件不变时, 直接同步 fruit_type_id
func (o *Orchestrator) reassignFruitTypeLocked(ctx context.Context, fruitID, fruitTypeID uint64) (int64, error) {
	affected, err := o.services.UpdateFruitTypeByFruit(ctx, fruitID, fruitTypeID)
	if err != nil {
		return 0, system.NewClassifyError(system.ErrClassificationWriteFailed, "fruit", fruitID, "sync fruit_type_id", err)
	}
	logger.LogBusinessOperation("reassign_fruit_type", "success", "fruit type pushed to services", map[string]interface{}{
		"fruit_id":      fruitID,
		"fruit_type_id": fruitTypeID,
		"services":      affected,
	})
	return affected, nil
}

// write 一条 UPDATE 写回三个派生字段
func (o *Orchestrator) write(ctx context.Context, serviceID uint64, c asset.Classification) error {
	if err := o.services.UpdateServiceClassification(ctx, serviceID, c); err != nil {
		return system.NewClassifyError(system.ErrClassificationWriteFailed, "service", serviceID, "", err)
	}
	return nil
}

func logSkipped(err error, serviceID uint64) {
	fields := map[string]interface{}{}
	if serviceID != 0 {
		fields["service_id"] = serviceID
	}
	var ce *system.ClassifyError
	if errors.As(err, &ce) {
		fields["subject"] = ce.Subject
		fields["rule_id"] = ce.ID
	}
	logger.LogError(err, "SERVICE", "match_evaluation_skipped", fields)
}
