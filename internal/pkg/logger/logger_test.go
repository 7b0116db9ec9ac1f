package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deveyNull/fruitmapper/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerRejectsNilConfig(t *testing.T) {
	_, err := InitLogger(nil)
	assert.Error(t, err)
}

func TestFileHookRoutesByType(t *testing.T) {
	prev := LoggerInstance
	defer func() { LoggerInstance = prev }()

	dir := t.TempDir()
	cfg := &config.LogConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: filepath.Join(dir, "app.log"),
		MaxSize:  1,
	}
	lm, err := InitLogger(cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, lm.GetLogger().GetLevel())

	LogError(errors.New("disk full"), "REPO", "update_service", map[string]interface{}{"service_id": 7})
	LogAuditOperation("create", "owner_ip_rule:1", "success", nil)
	Infof("plain message")

	errorLog, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errorLog), "disk full")
	assert.Contains(t, string(errorLog), `"service_id":7`)

	auditLog, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(auditLog), "owner_ip_rule:1")

	mainLog, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(mainLog), "plain message")
	assert.False(t, strings.Contains(string(mainLog), "disk full"))
}

func TestUpdateConfigKeepsOutput(t *testing.T) {
	prev := LoggerInstance
	defer func() { LoggerInstance = prev }()

	lm, err := InitLogger(&config.LogConfig{Level: "info", Format: "text", Output: "stdout"})
	require.NoError(t, err)

	err = lm.UpdateConfig(&config.LogConfig{Level: "debug", Format: "json", Output: "file", FilePath: "/nonexistent/app.log"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, lm.GetLogger().GetLevel())
	assert.Equal(t, "stdout", lm.GetConfig().Output)

	assert.Error(t, lm.UpdateConfig(&config.LogConfig{Level: "loud", Format: "json"}))
}

func TestHelpersAreNoopWithoutLogger(t *testing.T) {
	prev := LoggerInstance
	LoggerInstance = nil
	defer func() { LoggerInstance = prev }()

	assert.NotPanics(t, func() {
		LogError(errors.New("x"), "REPO", "op", nil)
		LogBusinessError(errors.New("x"), "op", "msg", nil)
		LogBusinessOperation("op", "success", "msg", nil)
		LogSystemEvent("database", "connected", "ok", logrus.InfoLevel, nil)
		Warnf("%d", 1)
		_ = WithFields(logrus.Fields{"a": 1})
	})
}
