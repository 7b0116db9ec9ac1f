package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/deveyNull/fruitmapper/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logFileNames 日志类型到文件名的映射, 未列出的类型写入主日志文件
var logFileNames = map[LogType]string{
	BusinessLog: "business.log",
	ErrorLog:    "error.log",
	SystemLog:   "system.log",
	AuditLog:    "audit.log",
	DebugLog:    "debug.log",
}

// FileHook 按 "type" 字段把日志写入不同的滚动文件
type FileHook struct {
	logConfig *config.LogConfig
	writers   map[LogType]io.Writer
	formatter logrus.Formatter
	mutex     sync.Mutex
}

// NewFileHook 创建一个新的FileHook实例
func NewFileHook(logConfig *config.LogConfig) *FileHook {
	hook := &FileHook{
		logConfig: logConfig,
		writers:   make(map[LogType]io.Writer),
		formatter: &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "function",
				logrus.FieldKeyFile:  "file",
			},
		},
	}

	// 主日志文件
	hook.writers[""] = hook.newRotatingWriter(logConfig.FilePath)

	return hook
}

func (hook *FileHook) newRotatingWriter(filename string) io.Writer {
	_ = os.MkdirAll(filepath.Dir(filename), 0755)
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    hook.logConfig.MaxSize,
		MaxBackups: hook.logConfig.MaxBackups,
		MaxAge:     hook.logConfig.MaxAge,
		Compress:   hook.logConfig.Compress,
	}
}

// Levels 返回此Hook关心的所有日志级别
func (hook *FileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 在日志触发时执行
func (hook *FileHook) Fire(entry *logrus.Entry) error {
	var logType LogType
	switch t := entry.Data["type"].(type) {
	case LogType:
		logType = t
	case string:
		logType = LogType(t)
	}

	formatted, err := hook.formatter.Format(entry)
	if err != nil {
		return err
	}

	hook.mutex.Lock()
	defer hook.mutex.Unlock()
	_, err = hook.writerFor(logType).Write(formatted)
	return err
}

// writerFor 获取指定类型的writer, 首次使用时创建; 调用方持有锁
func (hook *FileHook) writerFor(logType LogType) io.Writer {
	if writer, ok := hook.writers[logType]; ok {
		return writer
	}

	name, ok := logFileNames[logType]
	if !ok {
		return hook.writers[""]
	}

	writer := hook.newRotatingWriter(filepath.Join(filepath.Dir(hook.logConfig.FilePath), name))
	hook.writers[logType] = writer
	return writer
}
