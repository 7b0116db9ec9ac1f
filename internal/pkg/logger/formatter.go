// 分类型日志记录方法
package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogType 日志类型, FileHook 据此分文件
type LogType string

const (
	// BusinessLog 业务日志 - 归类结果、全量重算统计
	BusinessLog LogType = "business"
	// ErrorLog 错误日志 - 存储失败和异常
	ErrorLog LogType = "error"
	// SystemLog 系统日志 - 启动、连接、配置重载
	SystemLog LogType = "system"
	// DebugLog 调试日志
	DebugLog LogType = "debug"
	// AuditLog 审计日志 - 规则的增删改
	AuditLog LogType = "audit"
)

func mergeFields(fields logrus.Fields, extraFields map[string]interface{}) logrus.Fields {
	for k, v := range extraFields {
		fields[k] = v
	}
	return fields
}

// LogError 记录错误日志
// path 为产生错误的模块(如 REPO / SERVICE), operation 为操作名
func LogError(err error, path, operation string, extraFields map[string]interface{}) {
	if LoggerInstance == nil || err == nil {
		return
	}

	fields := mergeFields(logrus.Fields{
		"type":      ErrorLog,
		"error":     err.Error(),
		"path":      path,
		"operation": operation,
	}, extraFields)

	LoggerInstance.logger.WithFields(fields).Errorf("System error occurred: %s", err.Error())
}

// LogBusinessOperation 记录业务操作日志
// result 为 success 时记 Info, 其余记 Warn
func LogBusinessOperation(operation, result, message string, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	fields := mergeFields(logrus.Fields{
		"type":      BusinessLog,
		"operation": operation,
		"result":    result,
		"message":   message,
	}, extraFields)

	if result == "success" {
		LoggerInstance.logger.WithFields(fields).Info(fmt.Sprintf("Business operation: %s", operation))
	} else {
		LoggerInstance.logger.WithFields(fields).Warn(fmt.Sprintf("Business operation failed: %s", operation))
	}
}

// LogBusinessError 记录业务失败(校验不通过、资源不存在、被引用无法删除等)
func LogBusinessError(err error, operation, message string, extraFields map[string]interface{}) {
	if LoggerInstance == nil || err == nil {
		return
	}

	fields := mergeFields(logrus.Fields{
		"type":      BusinessLog,
		"operation": operation,
		"result":    "failed",
		"error":     err.Error(),
	}, extraFields)

	LoggerInstance.logger.WithFields(fields).Warnf("%s: %s", message, err.Error())
}

// LogSystemEvent 记录系统事件日志
func LogSystemEvent(component, event, message string, level logrus.Level, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	fields := mergeFields(logrus.Fields{
		"type":      SystemLog,
		"component": component,
		"event":     event,
		"message":   message,
	}, extraFields)

	msg := fmt.Sprintf("System event: %s - %s", component, event)
	entry := LoggerInstance.logger.WithFields(fields)
	switch level {
	case logrus.DebugLevel:
		entry.Debug(msg)
	case logrus.WarnLevel:
		entry.Warn(msg)
	case logrus.ErrorLevel:
		entry.Error(msg)
	default:
		entry.Info(msg)
	}
}

// LogAuditOperation 记录审计日志
// 规则集的每次变更都记一条, resource 形如 owner_ip_rule:12
func LogAuditOperation(action, resource, result string, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	fields := mergeFields(logrus.Fields{
		"type":     AuditLog,
		"action":   action,
		"resource": resource,
		"result":   result,
	}, extraFields)

	LoggerInstance.logger.WithFields(fields).Info(fmt.Sprintf("Audit: %s %s", action, resource))
}
