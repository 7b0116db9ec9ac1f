package asset

import (
	"time"

	"github.com/deveyNull/fruitmapper/internal/model/basemodel"
)

// UnknownFruitName 兜底指纹名称, 所有规则都未命中时使用
const UnknownFruitName = "unknown"

// 指纹匹配类型(数据库存储值)
const (
	MatchTypeBanner     = "banner"
	MatchTypeHTML       = "html"
	MatchTypeHTTPHeader = "http_header"
	MatchTypeUnknown    = "unknown"
)

// FruitType 产品类别表(如 web-server)
type FruitType struct {
	basemodel.BaseModel

	Name        string `json:"name" gorm:"size:50;uniqueIndex;not null;comment:类别名称"`
	Description string `json:"description" gorm:"size:200;comment:描述"`
}

// TableName 定义数据库表名
func (FruitType) TableName() string {
	return "fruit_types"
}

// Fruit 产品/指纹定义表
// MatchType 决定 MatchRegex 作用在哪一段文本上
type Fruit struct {
	basemodel.BaseModel

	Name            string     `json:"name" gorm:"size:100;uniqueIndex;not null;comment:指纹名称"`
	FruitTypeID     uint64     `json:"fruit_type_id" gorm:"index;not null;comment:产品类别ID"`
	MatchType       string     `json:"match_type" gorm:"size:20;not null;comment:匹配类型(banner/html/http_header/unknown)"`
	MatchRegex      *string    `json:"match_regex" gorm:"type:text;comment:匹配正则"`
	CountryOfOrigin string     `json:"country_of_origin" gorm:"size:100;comment:来源国家"`
	DatePicked      *time.Time `json:"date_picked" gorm:"comment:采集日期"`
}

// TableName 定义数据库表名
func (Fruit) TableName() string {
	return "fruits"
}

// Regex 返回匹配正则, 未设置时为空串
func (f *Fruit) Regex() string {
	if f.MatchRegex == nil {
		return ""
	}
	return *f.MatchRegex
}
