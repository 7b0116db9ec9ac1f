package main

import (
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "导入种子数据并全量重算",
		Long: `按名称 upsert 产品类别、指纹和归属方, 重新导入的归属方会替换其全部 IP/域名规则;
服务逐条新建。导入结束后执行一次全量重算。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if migrate {
				if err := app.Migrate(); err != nil {
					return err
				}
			}

			summary, err := app.Classify.Importer.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printSummary(summary)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "导入前先自动迁移表结构")
	return cmd
}
