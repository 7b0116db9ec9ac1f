package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deveyNull/fruitmapper/internal/config"
	"github.com/deveyNull/fruitmapper/internal/pkg/logger"
	"github.com/deveyNull/fruitmapper/internal/service/classify"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "常驻运行: 周期全量重算并热加载配置",
		Long: `按 classifier.reindex_interval 周期执行全量重算, 作为规则变更之外的兜底。
配置文件变化时热更新日志级别/格式和归类参数(chunk_size, workers, regex_timeout, reindex_interval)。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watcher, err := config.NewConfigWatcher(configDir, envName, app.Config)
			if err != nil {
				return err
			}
			watcher.AddCallback(app.ApplyConfig)
			if err := watcher.Start(); err != nil {
				return err
			}
			defer watcher.Stop()

			interval := app.Config.Classifier.ReindexInterval
			logger.LogSystemEvent("watch", "started", "Periodic reclassification started", logrus.InfoLevel, map[string]interface{}{
				"interval": interval.String(),
			})

			if runOnStart {
				reindex(ctx, app.Classify.Orchestrator)
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					logger.LogSystemEvent("watch", "stopped", "Periodic reclassification stopped", logrus.InfoLevel, nil)
					return nil
				case <-ticker.C:
					reindex(ctx, app.Classify.Orchestrator)
					// 周期以最近一次成功加载的配置为准
					if next := watcher.Current().Classifier.ReindexInterval; next > 0 && next != interval {
						interval = next
						ticker.Reset(interval)
					}
				}
			}
		},
	}

	cmd.Flags().BoolVar(&runOnStart, "run-on-start", true, "启动后立即执行一次全量重算")
	return cmd
}

// reindex 执行一次全量重算; 失败只记录, 下个周期重试
func reindex(ctx context.Context, orchestrator *classify.Orchestrator) {
	if _, err := orchestrator.ReclassifyAll(ctx, classify.ScopeAll); err != nil && ctx.Err() == nil {
		logger.LogError(err, "CMD", "watch_reindex", nil)
	}
}
