/**
 * 模型:错误定义
 * @description: 归类引擎错误分类和业务错误常量
 */
package system

import (
	"errors"
	"fmt"
)

// 归类引擎错误分类
var (
	// ErrInvalidAddressFormat IP/CIDR/域名规则无法解析, 创建时拒绝
	ErrInvalidAddressFormat = errors.New("地址格式无效")
	// ErrInvalidPattern 指纹正则无法编译或匹配类型非法, 创建时拒绝
	ErrInvalidPattern = errors.New("匹配规则无效")
	// ErrMatchEvaluationSkipped 已存储规则在匹配时求值失败, 记录日志后跳过该规则
	ErrMatchEvaluationSkipped = errors.New("规则求值已跳过")
	// ErrClassificationWriteFailed 归类结果写回失败, 调用方可重试
	ErrClassificationWriteFailed = errors.New("归类结果写入失败")
)

// 业务错误
var (
	ErrOwnerNotFound     = errors.New("归属方不存在")
	ErrFruitTypeNotFound = errors.New("产品类别不存在")
	ErrFruitNotFound     = errors.New("指纹不存在")
	ErrServiceNotFound   = errors.New("服务不存在")
	ErrRuleNotFound      = errors.New("规则不存在")

	ErrRuleExists      = errors.New("规则已存在")
	ErrOwnerExists     = errors.New("归属方已存在")
	ErrFruitTypeExists = errors.New("产品类别已存在")
	ErrFruitExists     = errors.New("指纹已存在")

	ErrOwnerInUse     = errors.New("归属方仍被服务引用, 无法删除")
	ErrFruitTypeInUse = errors.New("产品类别下仍有指纹, 无法删除")
)

// ClassifyError 带上下文的归类错误
// Kind 为上面四个分类之一, errors.Is 同时可以命中 Kind 和 Err
type ClassifyError struct {
	Kind    error  // 错误分类
	Subject string // 出错对象类型: owner_ip_rule, owner_domain_rule, fruit, service
	ID      uint64 // 出错对象ID, 创建阶段为0
	Reason  string // 可读原因
	Err     error  // 底层错误
}

// NewClassifyError 创建归类错误
func NewClassifyError(kind error, subject string, id uint64, reason string, cause error) *ClassifyError {
	return &ClassifyError{Kind: kind, Subject: subject, ID: id, Reason: reason, Err: cause}
}

// Error 实现error接口
func (e *ClassifyError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	if e.ID != 0 {
		msg = fmt.Sprintf("%s#%d", msg, e.ID)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap 支持 errors.Is / errors.As
func (e *ClassifyError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ValidationError 字段校验错误
type ValidationError struct {
	Field   string `json:"field"`   // 字段名
	Message string `json:"message"` // 错误消息
}

// NewValidationError 创建验证错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
