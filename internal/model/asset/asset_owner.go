package asset

import (
	"strings"
	"time"

	"github.com/deveyNull/fruitmapper/internal/model/basemodel"
)

// OwnerStatus 归属方状态
type OwnerStatus string

const (
	OwnerStatusActive   OwnerStatus = "active"
	OwnerStatusInactive OwnerStatus = "inactive"
)

// Owner 归属方表
// 一个组织, 通过 IP/域名规则把服务归到它名下
type Owner struct {
	basemodel.BaseModel

	Name        string      `json:"name" gorm:"size:100;uniqueIndex;not null;comment:归属方名称"`
	Description string      `json:"description" gorm:"size:500;comment:描述"`
	ContactInfo string      `json:"contact_info" gorm:"size:255;comment:联系方式"`
	Status      OwnerStatus `json:"status" gorm:"size:20;default:'active';comment:状态(active/inactive)"`
	ValidFrom   *time.Time  `json:"valid_from" gorm:"comment:有效期开始"`
	ValidTo     *time.Time  `json:"valid_to" gorm:"comment:有效期结束"`
}

// TableName 定义数据库表名
func (Owner) TableName() string {
	return "owners"
}

// OwnerIPRule 归属方IP规则表
// IP 为原样保存的规则字面量(单个IP或CIDR), 字面量唯一
type OwnerIPRule struct {
	basemodel.BaseModel

	OwnerID uint64 `json:"owner_id" gorm:"index;not null;comment:归属方ID"`
	IP      string `json:"ip" gorm:"column:ip;size:64;uniqueIndex;not null;comment:IP或CIDR"`
	IsRange bool   `json:"is_range" gorm:"default:false;comment:是否为CIDR网段"`
}

// TableName 定义数据库表名
func (OwnerIPRule) TableName() string {
	return "owner_ip_rules"
}

// IsRangeSpec 规则字面量是否为网段写法
func IsRangeSpec(spec string) bool {
	return strings.Contains(spec, "/")
}

// OwnerDomainRule 归属方域名规则表
// Domain 在创建时已归一化(小写, 去协议, 去 www.)
type OwnerDomainRule struct {
	basemodel.BaseModel

	OwnerID           uint64 `json:"owner_id" gorm:"index;not null;comment:归属方ID"`
	Domain            string `json:"domain" gorm:"size:255;uniqueIndex;not null;comment:域名(已归一化)"`
	IncludeSubdomains bool   `json:"include_subdomains" gorm:"default:false;comment:是否包含子域名"`
}

// TableName 定义数据库表名
func (OwnerDomainRule) TableName() string {
	return "owner_domain_rules"
}
