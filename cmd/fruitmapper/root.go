/*
 * @description: Cobra Root Command 定义
 */

package main

import (
	"fmt"
	"os"

	"github.com/deveyNull/fruitmapper/internal/app/fruitmapper"
	"github.com/deveyNull/fruitmapper/internal/config"

	"github.com/spf13/cobra"
)

var (
	configDir string
	envName   string
	logLevel  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fruitmapper",
	Short: "fruitmapper 服务自动归类引擎",
	Long: `fruitmapper 按归属方 IP/域名规则和指纹规则为网络服务自动归类,
规则变更后保证库中每个服务的归类结果与当前规则集一致。

示例:
  1.导入种子数据
	fruitmapper seed configs/seed.example.yaml
  2.全量重算
	fruitmapper reindex --scope owner
  3.查看单个服务的归类结果(不写库)
	fruitmapper classify 42 --dry-run
  4.常驻运行(周期重算 + 配置热更新)
	fruitmapper watch --env production
`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// 全局 Flag
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "", "配置文件目录 (默认: ./configs)")
	rootCmd.PersistentFlags().StringVarP(&envName, "env", "e", "", "运行环境 (development, test, production)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "覆盖配置中的日志级别 (debug, info, warn, error)")

	// 注册子命令
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newReindexCmd())
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newOwnerCmd())
	rootCmd.AddCommand(newFruitCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig 加载配置并应用命令行覆盖项
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configDir, envName)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// openApp 加载配置并初始化应用, 调用方负责 Close
func openApp() (*fruitmapper.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return fruitmapper.NewAppWithConfig(cfg)
}
