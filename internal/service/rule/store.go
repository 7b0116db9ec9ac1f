// 规则库
// 除了基础的CRUD之外, 负责在写入前校验规则: IP/CIDR 可解析, 域名归一化, 指纹正则可编译
// 规则变更后的重新归类由 classify.Maintainer 负责
package rule

import (
	"fmt"
	"time"

	"github.com/deveyNull/fruitmapper/internal/pkg/logger"
	"github.com/deveyNull/fruitmapper/internal/pkg/matcher"
	assetrepo "github.com/deveyNull/fruitmapper/internal/repo/mysql/asset"
)

// Store 规则库
type Store struct {
	owners       *assetrepo.OwnerRepository
	fruits       *assetrepo.FruitRepository
	regexTimeout time.Duration
}

// NewStore 创建规则库实例
func NewStore(owners *assetrepo.OwnerRepository, fruits *assetrepo.FruitRepository, regexTimeout time.Duration) *Store {
	if regexTimeout <= 0 {
		regexTimeout = matcher.DefaultRegexTimeout
	}
	return &Store{owners: owners, fruits: fruits, regexTimeout: regexTimeout}
}

func audit(action, subject string, id uint64, extra map[string]interface{}) {
	logger.LogAuditOperation(action, fmt.Sprintf("%s:%d", subject, id), "success", extra)
}
