package classify

import (
	"fmt"
	"strings"
)

// Scope 全量重算的范围
type Scope uint8

const (
	// ScopeAll 归属和指纹都重算
	ScopeAll Scope = iota
	// ScopeOwner 只重算归属(owner_id)
	ScopeOwner
	// ScopeIdentity 只重算指纹(fruit_id, fruit_type_id)
	ScopeIdentity
)

// String 用于日志和命令行
func (s Scope) String() string {
	switch s {
	case ScopeOwner:
		return "owner"
	case ScopeIdentity:
		return "identity"
	}
	return "all"
}

// ParseScope 解析命令行传入的范围
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ScopeAll, nil
	case "owner":
		return ScopeOwner, nil
	case "identity":
		return ScopeIdentity, nil
	}
	return ScopeAll, fmt.Errorf("invalid scope %q (want all, owner or identity)", s)
}

func (s Scope) includesOwner() bool {
	return s == ScopeAll || s == ScopeOwner
}

func (s Scope) includesIdentity() bool {
	return s == ScopeAll || s == ScopeIdentity
}
