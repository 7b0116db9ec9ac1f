package asset

import (
	"context"
	"errors"

	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/pkg/logger"

	"gorm.io/gorm"
)

// ServiceRepository 服务仓库
type ServiceRepository struct {
	db *gorm.DB
}

// NewServiceRepository 创建 ServiceRepository 实例
func NewServiceRepository(db *gorm.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// CreateService 创建服务
func (r *ServiceRepository) CreateService(ctx context.Context, svc *asset.Service) error {
	if svc == nil {
		return errors.New("service is nil")
	}
	if err := r.db.WithContext(ctx).Create(svc).Error; err != nil {
		logger.LogError(err, "REPO", "create_service", map[string]interface{}{
			"ip":   svc.IP,
			"port": svc.Port,
		})
		return err
	}
	return nil
}

// GetServiceByID 根据ID获取服务
func (r *ServiceRepository) GetServiceByID(ctx context.Context, id uint64) (*asset.Service, error) {
	var svc asset.Service
	err := r.db.WithContext(ctx).First(&svc, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "REPO", "get_service_by_id", map[string]interface{}{
			"id": id,
		})
		return nil, err
	}
	return &svc, nil
}

// UpdateServiceFields 更新服务的采集字段(ip/port/asn/country/domain/banner/http_data)
// 派生字段不在此更新
func (r *ServiceRepository) UpdateServiceFields(ctx context.Context, svc *asset.Service) error {
	if svc == nil || svc.ID == 0 {
		return errors.New("invalid service or id")
	}
	err := r.db.WithContext(ctx).Model(svc).
		Select("ip", "port", "asn", "country", "domain", "banner", "http_data").
		Updates(svc).Error
	if err != nil {
		logger.LogError(err, "REPO", "update_service_fields", map[string]interface{}{
			"id": svc.ID,
		})
		return err
	}
	return nil
}

// DeleteService 删除服务
func (r *ServiceRepository) DeleteService(ctx context.Context, id uint64) error {
	if err := r.db.WithContext(ctx).Delete(&asset.Service{}, id).Error; err != nil {
		logger.LogError(err, "REPO", "delete_service", map[string]interface{}{
			"id": id,
		})
		return err
	}
	return nil
}

// ListServices 按ID游标分页获取服务
func (r *ServiceRepository) ListServices(ctx context.Context, filter asset.ServiceFilter) ([]*asset.Service, error) {
	query := r.db.WithContext(ctx).Model(&asset.Service{}).Where("id > ?", filter.AfterID)
	if filter.FruitID != nil {
		query = query.Where("fruit_id = ?", *filter.FruitID)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var services []*asset.Service
	if err := query.Order("id asc").Find(&services).Error; err != nil {
		logger.LogError(err, "REPO", "list_services", map[string]interface{}{
			"after_id": filter.AfterID,
			"limit":    filter.Limit,
		})
		return nil, err
	}
	return services, nil
}

// UpdateServiceClassification 一条 UPDATE 写入三个派生字段
func (r *ServiceRepository) UpdateServiceClassification(ctx context.Context, id uint64, c asset.Classification) error {
	result := r.db.WithContext(ctx).Model(&asset.Service{}).Where("id = ?", id).Updates(map[string]interface{}{
		"owner_id":      c.OwnerID,
		"fruit_id":      c.FruitID,
		"fruit_type_id": c.FruitTypeID,
	})
	if result.Error != nil {
		logger.LogError(result.Error, "REPO", "update_service_classification", map[string]interface{}{
			"id": id,
		})
		return result.Error
	}
	return nil
}

// UpdateFruitTypeByFruit 把指纹的新类别同步到所有指向该指纹的服务, 返回影响行数
func (r *ServiceRepository) UpdateFruitTypeByFruit(ctx context.Context, fruitID, fruitTypeID uint64) (int64, error) {
	result := r.db.WithContext(ctx).Model(&asset.Service{}).
		Where("fruit_id = ?", fruitID).
		Update("fruit_type_id", fruitTypeID)
	if result.Error != nil {
		logger.LogError(result.Error, "REPO", "update_fruit_type_by_fruit", map[string]interface{}{
			"fruit_id":      fruitID,
			"fruit_type_id": fruitTypeID,
		})
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountServices 服务总数
func (r *ServiceRepository) CountServices(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&asset.Service{}).Count(&count).Error; err != nil {
		logger.LogError(err, "REPO", "count_services", nil)
		return 0, err
	}
	return count, nil
}
