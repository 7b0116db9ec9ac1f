package database

import (
	"fmt"

	"github.com/deveyNull/fruitmapper/internal/model/asset"

	"gorm.io/gorm"
)

// Models 需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&asset.Owner{},
		&asset.OwnerIPRule{},
		&asset.OwnerDomainRule{},
		&asset.FruitType{},
		&asset.Fruit{},
		&asset.Service{},
	}
}

// AutoMigrate 创建或更新表结构
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

// DropAll 删除全部表, 仅用于重建
func DropAll(db *gorm.DB) error {
	models := Models()
	// 逆序删除
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("drop table failed: %w", err)
		}
	}
	return nil
}
