package asset

import (
	"github.com/deveyNull/fruitmapper/internal/model/basemodel"
)

// Service 网络服务表
// OwnerID/FruitID/FruitTypeID 为派生字段, 只由归类引擎写入
type Service struct {
	basemodel.BaseModel

	IP       string  `json:"ip" gorm:"column:ip;size:64;index;not null;comment:IP地址"`
	Port     int     `json:"port" gorm:"not null;comment:端口号"`
	ASN      string  `json:"asn" gorm:"column:asn;size:50;comment:自治系统号"`
	Country  string  `json:"country" gorm:"size:100;comment:国家"`
	Domain   *string `json:"domain" gorm:"size:255;index;comment:域名"`
	Banner   *string `json:"banner" gorm:"type:text;comment:服务横幅"`
	HTTPData *string `json:"http_data" gorm:"column:http_data;type:text;comment:HTTP响应数据(JSON: html/headers)"`

	OwnerID     *uint64 `json:"owner_id" gorm:"index;comment:归属方ID(派生)"`
	FruitID     *uint64 `json:"fruit_id" gorm:"index;comment:指纹ID(派生)"`
	FruitTypeID *uint64 `json:"fruit_type_id" gorm:"index;comment:产品类别ID(派生, 与指纹所属类别一致)"`
}

// TableName 定义数据库表名
func (Service) TableName() string {
	return "services"
}

// Classification 服务的三个派生字段
type Classification struct {
	OwnerID     *uint64 `json:"owner_id"`
	FruitID     *uint64 `json:"fruit_id"`
	FruitTypeID *uint64 `json:"fruit_type_id"`
}

// Classification 返回服务当前存储的派生字段
func (s *Service) Classification() Classification {
	return Classification{OwnerID: s.OwnerID, FruitID: s.FruitID, FruitTypeID: s.FruitTypeID}
}

// Equal 比较两组派生字段是否一致
func (c Classification) Equal(o Classification) bool {
	return eqID(c.OwnerID, o.OwnerID) && eqID(c.FruitID, o.FruitID) && eqID(c.FruitTypeID, o.FruitTypeID)
}

func eqID(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ServiceFilter 服务分页查询条件(按ID游标分页)
type ServiceFilter struct {
	AfterID uint64  // 只返回 ID 大于该值的记录
	Limit   int     // 每页数量
	FruitID *uint64 // 按指纹过滤
	OwnerID *uint64 // 按归属方过滤
}
