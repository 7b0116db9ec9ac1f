/*
*
  - 数据库迁移工具
  - @description: 表结构迁移, 可选导入种子数据
  - @usage: go run ./cmd/migrate -env=test -seed=configs/seed.example.yaml -drop=true
    -config string
    配置文件目录 (默认 ./configs)
    -drop
    是否先删除表（危险操作）
    -env string
    环境标识 (development, test, production) (default "development")
    -seed string
    种子数据文件, 为空则不导入
    -verbose
    是否显示详细日志

示例:
migrate -env=test -seed=configs/seed.example.yaml   # 测试环境迁移并导入种子数据
migrate -env=production                             # 生产环境仅迁移表结构
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/deveyNull/fruitmapper/internal/app/fruitmapper"
	"github.com/deveyNull/fruitmapper/internal/config"
	"github.com/deveyNull/fruitmapper/internal/pkg/database"
	"github.com/deveyNull/fruitmapper/internal/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MigrateOptions 迁移选项配置
type MigrateOptions struct {
	Environment string // 环境标识: development, test, production
	ConfigDir   string // 配置文件目录
	SeedFile    string // 种子数据文件
	DropFirst   bool   // 是否先删除表（危险操作）
	Verbose     bool   // 是否显示详细日志
}

func main() {
	// 解析命令行参数
	opts := parseFlags()

	// 加载配置
	cfg, err := config.LoadConfig(opts.ConfigDir, opts.Environment)
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	// 初始化日志、数据库和归类引擎
	app, err := fruitmapper.NewAppWithConfig(cfg)
	if err != nil {
		log.Fatalf("应用初始化失败: %v", err)
	}
	defer app.Close()

	logger.WithFields(logrus.Fields{
		"path":        "cmd/migrate/main.go",
		"operation":   "database_migration",
		"option":      "migrate.start",
		"func_name":   "main",
		"environment": cfg.App.Environment,
		"driver":      cfg.Database.Driver,
		"seed_file":   opts.SeedFile,
		"drop_first":  opts.DropFirst,
	}).Info("开始数据库迁移")

	// 执行迁移
	if err := performMigration(context.Background(), app, opts); err != nil {
		logger.WithFields(logrus.Fields{
			"path":      "cmd/migrate/main.go",
			"operation": "database_migration",
			"option":    "performMigration",
			"func_name": "main",
			"error":     err.Error(),
		}).Error("数据库迁移失败")
		app.Close()
		os.Exit(1)
	}

	logger.WithFields(logrus.Fields{
		"path":      "cmd/migrate/main.go",
		"operation": "database_migration",
		"option":    "migrate.complete",
		"func_name": "main",
	}).Info("数据库迁移完成")
}

// parseFlags 解析命令行参数
func parseFlags() *MigrateOptions {
	opts := &MigrateOptions{}

	flag.StringVar(&opts.Environment, "env", "development", "环境标识 (development, test, production)")
	flag.StringVar(&opts.ConfigDir, "config", "", "配置文件目录 (默认 ./configs)")
	flag.StringVar(&opts.SeedFile, "seed", "", "种子数据文件 (YAML), 为空则不导入")
	flag.BoolVar(&opts.DropFirst, "drop", false, "是否先删除表（危险操作）")
	flag.BoolVar(&opts.Verbose, "verbose", false, "是否显示详细日志")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "fruitmapper 数据库迁移工具\n\n")
		fmt.Fprintf(os.Stderr, "用法: %s [选项]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "选项:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n示例:\n")
		fmt.Fprintf(os.Stderr, "  %s -env=test -seed=configs/seed.example.yaml   # 测试环境迁移并导入种子数据\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -env=production                             # 生产环境仅迁移表结构\n", os.Args[0])
	}

	flag.Parse()
	return opts
}

// performMigration 执行数据库迁移
func performMigration(ctx context.Context, app *fruitmapper.App, opts *MigrateOptions) error {
	// 1. 删除表（如果指定）, 生产环境拒绝
	if opts.DropFirst {
		if app.Config.App.IsProduction() {
			return fmt.Errorf("生产环境不允许 -drop")
		}
		if err := dropTables(app.DB); err != nil {
			return fmt.Errorf("删除表失败: %w", err)
		}
	}

	// 2. 执行模型迁移
	if err := migrateModels(app.DB); err != nil {
		return fmt.Errorf("模型迁移失败: %w", err)
	}

	// 3. 导入种子数据（如果指定）, 导入后全量重算
	if opts.SeedFile != "" {
		summary, err := app.Classify.Importer.ImportFile(ctx, opts.SeedFile)
		if err != nil {
			return fmt.Errorf("种子数据导入失败: %w", err)
		}
		logger.WithFields(logrus.Fields{
			"path":          "cmd/migrate/main.go",
			"operation":     "seed_import",
			"option":        opts.SeedFile,
			"func_name":     "performMigration",
			"owners":        summary.OwnersCreated + summary.OwnersUpdated,
			"fruits":        summary.FruitsCreated + summary.FruitsUpdated,
			"services":      summary.ServicesCreated,
			"reclassified":  summary.Report.Updated,
			"skipped_rules": summary.Report.SkippedRules,
		}).Info("种子数据导入完成")
	}

	return nil
}

// dropTables 删除所有表
// 危险操作，仅用于开发环境重置
func dropTables(db *gorm.DB) error {
	logger.WithFields(logrus.Fields{
		"path":      "cmd/migrate/main.go",
		"operation": "drop_tables",
		"option":    "database.DropAll",
		"func_name": "dropTables",
	}).Warn("开始删除数据库表")

	return database.DropAll(db)
}

// migrateModels 逐个模型迁移, 便于定位失败的表
func migrateModels(db *gorm.DB) error {
	logger.Info("开始执行模型迁移...")

	for _, model := range database.Models() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("迁移模型 %T 失败: %w", model, err)
		}
		logger.WithFields(logrus.Fields{"model": fmt.Sprintf("%T", model)}).Debug("模型迁移成功")
	}
	return nil
}
