package asset

import (
	"context"
	"errors"

	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/pkg/logger"

	"gorm.io/gorm"
)

// FruitRepository 指纹仓库
// 负责 FruitType 和 Fruit 的数据访问
type FruitRepository struct {
	db *gorm.DB
}

// NewFruitRepository 创建 FruitRepository 实例
func NewFruitRepository(db *gorm.DB) *FruitRepository {
	return &FruitRepository{db: db}
}

// -----------------------------------------------------------------------------
// FruitType (产品类别) CRUD
// -----------------------------------------------------------------------------

// CreateFruitType 创建产品类别
func (r *FruitRepository) CreateFruitType(ctx context.Context, ft *asset.FruitType) error {
	if ft == nil {
		return errors.New("fruit type is nil")
	}
	if err := r.db.WithContext(ctx).Create(ft).Error; err != nil {
		logger.LogError(err, "REPO", "create_fruit_type", map[string]interface{}{
			"name": ft.Name,
		})
		return err
	}
	return nil
}

// GetFruitTypeByID 根据ID获取产品类别
func (r *FruitRepository) GetFruitTypeByID(ctx context.Context, id uint64) (*asset.FruitType, error) {
	var ft asset.FruitType
	err := r.db.WithContext(ctx).First(&ft, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "REPO", "get_fruit_type_by_id", map[string]interface{}{
			"id": id,
		})
		return nil, err
	}
	return &ft, nil
}

// GetFruitTypeByName 根据名称获取产品类别
func (r *FruitRepository) GetFruitTypeByName(ctx context.Context, name string) (*asset.FruitType, error) {
	var ft asset.FruitType
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&ft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "REPO", "get_fruit_type_by_name", map[string]interface{}{
			"name": name,
		})
		return nil, err
	}
	return &ft, nil
}

// UpdateFruitType 更新产品类别
func (r *FruitRepository) UpdateFruitType(ctx context.Context, ft *asset.FruitType) error {
	if ft == nil || ft.ID == 0 {
		return errors.New("invalid fruit type or id")
	}
	if err := r.db.WithContext(ctx).Save(ft).Error; err != nil {
		logger.LogError(err, "REPO", "update_fruit_type", map[string]interface{}{
			"id": ft.ID,
		})
		return err
	}
	return nil
}

// DeleteFruitType 删除产品类别
func (r *FruitRepository) DeleteFruitType(ctx context.Context, id uint64) error {
	if err := r.db.WithContext(ctx).Delete(&asset.FruitType{}, id).Error; err != nil {
		logger.LogError(err, "REPO", "delete_fruit_type", map[string]interface{}{
			"id": id,
		})
		return err
	}
	return nil
}

// ListFruitTypes 获取全部产品类别
func (r *FruitRepository) ListFruitTypes(ctx context.Context) ([]*asset.FruitType, error) {
	var types []*asset.FruitType
	if err := r.db.WithContext(ctx).Order("id asc").Find(&types).Error; err != nil {
		logger.LogError(err, "REPO", "list_fruit_types", nil)
		return nil, err
	}
	return types, nil
}

// CountFruitsByType 统计类别下的指纹数
func (r *FruitRepository) CountFruitsByType(ctx context.Context, fruitTypeID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&asset.Fruit{}).Where("fruit_type_id = ?", fruitTypeID).Count(&count).Error
	if err != nil {
		logger.LogError(err, "REPO", "count_fruits_by_type", map[string]interface{}{
			"fruit_type_id": fruitTypeID,
		})
		return 0, err
	}
	return count, nil
}

// -----------------------------------------------------------------------------
// Fruit (指纹) CRUD
// -----------------------------------------------------------------------------

// CreateFruit 创建指纹
func (r *FruitRepository) CreateFruit(ctx context.Context, fruit *asset.Fruit) error {
	if fruit == nil {
		return errors.New("fruit is nil")
	}
	if err := r.db.WithContext(ctx).Create(fruit).Error; err != nil {
		logger.LogError(err, "REPO", "create_fruit", map[string]interface{}{
			"name":       fruit.Name,
			"match_type": fruit.MatchType,
		})
		return err
	}
	return nil
}

// GetFruitByID 根据ID获取指纹
func (r *FruitRepository) GetFruitByID(ctx context.Context, id uint64) (*asset.Fruit, error) {
	var fruit asset.Fruit
	err := r.db.WithContext(ctx).First(&fruit, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "REPO", "get_fruit_by_id", map[string]interface{}{
			"id": id,
		})
		return nil, err
	}
	return &fruit, nil
}

// GetFruitByName 根据名称获取指纹
func (r *FruitRepository) GetFruitByName(ctx context.Context, name string) (*asset.Fruit, error) {
	var fruit asset.Fruit
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&fruit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "REPO", "get_fruit_by_name", map[string]interface{}{
			"name": name,
		})
		return nil, err
	}
	return &fruit, nil
}

// UpdateFruit 更新指纹
func (r *FruitRepository) UpdateFruit(ctx context.Context, fruit *asset.Fruit) error {
	if fruit == nil || fruit.ID == 0 {
		return errors.New("invalid fruit or id")
	}
	if err := r.db.WithContext(ctx).Save(fruit).Error; err != nil {
		logger.LogError(err, "REPO", "update_fruit", map[string]interface{}{
			"id": fruit.ID,
		})
		return err
	}
	return nil
}

// DeleteFruit 删除指纹
func (r *FruitRepository) DeleteFruit(ctx context.Context, id uint64) error {
	if err := r.db.WithContext(ctx).Delete(&asset.Fruit{}, id).Error; err != nil {
		logger.LogError(err, "REPO", "delete_fruit", map[string]interface{}{
			"id": id,
		})
		return err
	}
	return nil
}

// ListFruits 获取全部指纹, 按创建次序
func (r *FruitRepository) ListFruits(ctx context.Context) ([]*asset.Fruit, error) {
	return listFruits(r.db.WithContext(ctx))
}

func listFruits(db *gorm.DB) ([]*asset.Fruit, error) {
	var fruits []*asset.Fruit
	if err := db.Order("created_at asc, id asc").Find(&fruits).Error; err != nil {
		logger.LogError(err, "REPO", "list_fruits", nil)
		return nil, err
	}
	return fruits, nil
}
