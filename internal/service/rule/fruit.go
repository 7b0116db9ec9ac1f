package rule

import (
	"context"
	"fmt"
	"strings"

	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/model/system"
	"github.com/deveyNull/fruitmapper/internal/pkg/logger"
	"github.com/deveyNull/fruitmapper/internal/pkg/matcher"
)

// FruitChange 指纹更新涉及的字段
type FruitChange struct {
	PatternChanged bool // match_type 或 match_regex 变化, 需要重新匹配
	TypeChanged    bool // 仅类别变化, 只需同步 fruit_type_id
}

// -----------------------------------------------------------------------------
// FruitType
// -----------------------------------------------------------------------------

// AddFruitType 创建产品类别
func (s *Store) AddFruitType(ctx context.Context, ft *asset.FruitType) error {
	if ft == nil {
		return system.NewValidationError("", "fruit type cannot be nil")
	}
	ft.Name = strings.TrimSpace(ft.Name)
	if ft.Name == "" {
		return system.NewValidationError("name", "fruit type name cannot be empty")
	}
	existing, err := s.fruits.GetFruitTypeByName(ctx, ft.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return system.ErrFruitTypeExists
	}
	if err := s.fruits.CreateFruitType(ctx, ft); err != nil {
		return err
	}
	audit("create", "fruit_type", ft.ID, map[string]interface{}{"name": ft.Name})
	return nil
}

// UpdateFruitType 更新产品类别名称/描述
func (s *Store) UpdateFruitType(ctx context.Context, ft *asset.FruitType) error {
	if ft == nil || ft.ID == 0 {
		return system.NewValidationError("id", "fruit type id is required")
	}
	existing, err := s.fruits.GetFruitTypeByID(ctx, ft.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return system.ErrFruitTypeNotFound
	}
	ft.Name = strings.TrimSpace(ft.Name)
	if ft.Name == "" {
		return system.NewValidationError("name", "fruit type name cannot be empty")
	}
	if ft.Name != existing.Name {
		dup, err := s.fruits.GetFruitTypeByName(ctx, ft.Name)
		if err != nil {
			return err
		}
		if dup != nil {
			return system.ErrFruitTypeExists
		}
	}
	ft.CreatedAt = existing.CreatedAt
	if err := s.fruits.UpdateFruitType(ctx, ft); err != nil {
		return err
	}
	audit("update", "fruit_type", ft.ID, map[string]interface{}{"name": ft.Name})
	return nil
}

// RemoveFruitType 删除产品类别; 仍有指纹属于该类别时拒绝
func (s *Store) RemoveFruitType(ctx context.Context, id uint64) error {
	existing, err := s.fruits.GetFruitTypeByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return system.ErrFruitTypeNotFound
	}
	count, err := s.fruits.CountFruitsByType(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.LogBusinessError(system.ErrFruitTypeInUse, "remove_fruit_type", "fruit type still has fruits", map[string]interface{}{
			"fruit_type_id": id,
			"fruits":        count,
		})
		return system.ErrFruitTypeInUse
	}
	if err := s.fruits.DeleteFruitType(ctx, id); err != nil {
		return err
	}
	audit("delete", "fruit_type", id, map[string]interface{}{"name": existing.Name})
	return nil
}

// ListFruitTypes 列出全部产品类别
func (s *Store) ListFruitTypes(ctx context.Context) ([]*asset.FruitType, error) {
	return s.fruits.ListFruitTypes(ctx)
}

// GetFruitTypeByName 按名称获取产品类别
func (s *Store) GetFruitTypeByName(ctx context.Context, name string) (*asset.FruitType, error) {
	return s.fruits.GetFruitTypeByName(ctx, strings.TrimSpace(name))
}

// -----------------------------------------------------------------------------
// Fruit
// -----------------------------------------------------------------------------

// validateFruit 校验指纹字段; 正则按匹配时的语法和超时编译
func (s *Store) validateFruit(ctx context.Context, fruit *asset.Fruit) error {
	fruit.Name = strings.TrimSpace(fruit.Name)
	if fruit.Name == "" {
		return system.NewValidationError("name", "fruit name cannot be empty")
	}

	kind, ok := matcher.ParseMatchKind(strings.ToLower(strings.TrimSpace(fruit.MatchType)))
	if !ok {
		return system.NewClassifyError(system.ErrInvalidPattern, "fruit", fruit.ID,
			fmt.Sprintf("unknown match type %q", fruit.MatchType), nil)
	}
	fruit.MatchType = kind.String()

	if kind.Active() {
		pattern := fruit.Regex()
		if strings.TrimSpace(pattern) == "" {
			return system.NewClassifyError(system.ErrInvalidPattern, "fruit", fruit.ID,
				fmt.Sprintf("match type %s requires a regex", kind), nil)
		}
		if _, err := matcher.CompilePattern(pattern, s.regexTimeout); err != nil {
			return system.NewClassifyError(system.ErrInvalidPattern, "fruit", fruit.ID, "regex does not compile", err)
		}
	}

	ft, err := s.fruits.GetFruitTypeByID(ctx, fruit.FruitTypeID)
	if err != nil {
		return err
	}
	if ft == nil {
		return system.ErrFruitTypeNotFound
	}
	return nil
}

// AddFruit 创建指纹, 正则无法编译时拒绝, 不会存入库中
func (s *Store) AddFruit(ctx context.Context, fruit *asset.Fruit) error {
	if fruit == nil {
		return system.NewValidationError("", "fruit cannot be nil")
	}
	if err := s.validateFruit(ctx, fruit); err != nil {
		logger.LogBusinessError(err, "add_fruit", "rejected fruit", map[string]interface{}{
			"name":       fruit.Name,
			"match_type": fruit.MatchType,
		})
		return err
	}

	existing, err := s.fruits.GetFruitByName(ctx, fruit.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return system.ErrFruitExists
	}

	if err := s.fruits.CreateFruit(ctx, fruit); err != nil {
		return err
	}
	audit("create", "fruit", fruit.ID, map[string]interface{}{
		"name":       fruit.Name,
		"match_type": fruit.MatchType,
	})
	return nil
}

// UpdateFruit 更新指纹, 返回变化的字段以便调用方决定重算范围
func (s *Store) UpdateFruit(ctx context.Context, fruit *asset.Fruit) (FruitChange, error) {
	if fruit == nil || fruit.ID == 0 {
		return FruitChange{}, system.NewValidationError("id", "fruit id is required")
	}
	existing, err := s.fruits.GetFruitByID(ctx, fruit.ID)
	if err != nil {
		return FruitChange{}, err
	}
	if existing == nil {
		return FruitChange{}, system.ErrFruitNotFound
	}
	if err := s.validateFruit(ctx, fruit); err != nil {
		logger.LogBusinessError(err, "update_fruit", "rejected fruit", map[string]interface{}{
			"fruit_id": fruit.ID,
		})
		return FruitChange{}, err
	}
	if fruit.Name != existing.Name {
		dup, err := s.fruits.GetFruitByName(ctx, fruit.Name)
		if err != nil {
			return FruitChange{}, err
		}
		if dup != nil {
			return FruitChange{}, system.ErrFruitExists
		}
	}

	change := FruitChange{
		PatternChanged: fruit.MatchType != existing.MatchType || fruit.Regex() != existing.Regex() ||
			// 兜底指纹按名称识别, 改名同样影响匹配
			(fruit.Name != existing.Name && (fruit.Name == asset.UnknownFruitName || existing.Name == asset.UnknownFruitName)),
		TypeChanged: fruit.FruitTypeID != existing.FruitTypeID,
	}

	fruit.CreatedAt = existing.CreatedAt
	if err := s.fruits.UpdateFruit(ctx, fruit); err != nil {
		return FruitChange{}, err
	}
	audit("update", "fruit", fruit.ID, map[string]interface{}{
		"name":            fruit.Name,
		"pattern_changed": change.PatternChanged,
		"type_changed":    change.TypeChanged,
	})
	return change, nil
}

// RemoveFruit 删除指纹
func (s *Store) RemoveFruit(ctx context.Context, id uint64) error {
	existing, err := s.fruits.GetFruitByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return system.ErrFruitNotFound
	}
	if err := s.fruits.DeleteFruit(ctx, id); err != nil {
		return err
	}
	audit("delete", "fruit", id, map[string]interface{}{"name": existing.Name})
	return nil
}

// GetFruitByID 按ID获取指纹
func (s *Store) GetFruitByID(ctx context.Context, id uint64) (*asset.Fruit, error) {
	return s.fruits.GetFruitByID(ctx, id)
}

// GetFruitByName 按名称获取指纹
func (s *Store) GetFruitByName(ctx context.Context, name string) (*asset.Fruit, error) {
	return s.fruits.GetFruitByName(ctx, strings.TrimSpace(name))
}
