package fruitmapper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deveyNull/fruitmapper/internal/config"
	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/service/classify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appConfig = `
app:
  name: "fruitmapper"
  environment: "test"
database:
  driver: "sqlite"
  sqlite:
    path: ":memory:"
    log_level: "silent"
log:
  level: "warn"
  format: "json"
  output: "stdout"
classifier:
  chunk_size: 10
  workers: 2
`

const appSeed = `
fruit_types:
  - name: web-server
fruits:
  - name: nginx
    fruit_type: web-server
    match_type: banner
    match_regex: "nginx"
owners:
  - name: Acme
    ips: ["10.0.0.0/8"]
services:
  - ip: 10.0.0.5
    port: 80
    banner: "Server: nginx/1.25"
`

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(appConfig), 0644))

	app, err := NewApp(dir, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	require.NoError(t, app.Migrate())
	return app
}

func TestNewAppWiresClassifyModule(t *testing.T) {
	app := newTestApp(t)
	require.NotNil(t, app.Classify)
	assert.Nil(t, app.Redis)

	ctx := context.Background()
	summary, err := app.Classify.Importer.Import(ctx, strings.NewReader(appSeed))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ServicesCreated)
	require.NotNil(t, summary.Report)
	assert.Equal(t, 1, summary.Report.Updated)

	services, err := app.Classify.ServiceRepo.ListServices(ctx, asset.ServiceFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.NotNil(t, services[0].OwnerID)
	assert.NotNil(t, services[0].FruitID)

	// 没有规则变化时再跑一次全量重算不产生写入
	report, err := app.Classify.Orchestrator.ReclassifyAll(ctx, classify.ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 1, report.Unchanged)
}

func TestApplyConfigUpdatesOptions(t *testing.T) {
	app := newTestApp(t)

	updated := *app.Config
	updated.Classifier.ChunkSize = 3
	updated.Classifier.Workers = 7
	updated.Log.Level = "debug"

	require.NoError(t, app.ApplyConfig(app.Config, &updated))
	opts := app.Classify.Orchestrator.Options()
	assert.Equal(t, 3, opts.ChunkSize)
	assert.Equal(t, 7, opts.Workers)
	assert.Equal(t, "debug", app.Config.Log.Level)
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	_, err := NewApp(t.TempDir(), "test")
	assert.Error(t, err)

	cfg := &config.Config{
		Database:   config.DatabaseConfig{Driver: "sqlite", SQLite: config.SQLiteConfig{Path: ":memory:"}},
		Log:        config.LogConfig{Level: "info", Format: "json", Output: "stdout"},
		Classifier: config.ClassifierConfig{Lock: config.LockConfig{Backend: "etcd"}},
	}
	_, err = NewAppWithConfig(cfg)
	assert.Error(t, err)
}
