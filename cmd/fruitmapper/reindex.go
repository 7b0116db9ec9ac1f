package main

import (
	"github.com/deveyNull/fruitmapper/internal/service/classify"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newReindexCmd() *cobra.Command {
	var scopeName string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "按当前规则集全量重算服务归类",
		Long: `scope 取值:
  all       归属方和指纹都重算
  owner     只重算 owner_id
  identity  只重算 fruit_id / fruit_type_id`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := classify.ParseScope(scopeName)
			if err != nil {
				return err
			}

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Classify.Orchestrator.ReclassifyAll(cmd.Context(), scope)
			if err != nil {
				return err
			}
			total, err := app.Classify.ServiceRepo.CountServices(cmd.Context())
			if err != nil {
				return err
			}
			if err := printReport(report); err != nil {
				return err
			}
			// 重算期间有服务新增或删除时提示, 新服务已在创建时归类
			if total != int64(report.Scanned) {
				pterm.Warning.Printf("服务数在重算期间发生变化: 扫描 %d, 当前 %d\n", report.Scanned, total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&scopeName, "scope", "s", "all", "重算范围 (all, owner, identity)")
	return cmd
}
