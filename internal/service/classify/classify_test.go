package classify

import (
	"context"
	"testing"

	"github.com/deveyNull/fruitmapper/internal/config"
	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/pkg/database"
	"github.com/deveyNull/fruitmapper/internal/repo/memory"
	assetrepo "github.com/deveyNull/fruitmapper/internal/repo/mysql/asset"
	"github.com/deveyNull/fruitmapper/internal/service/rule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	rules    *rule.Store
	services *assetrepo.ServiceRepository
	orch     *Orchestrator
	maint    *Maintainer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewSQLiteConnection(&config.SQLiteConfig{Path: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	rules := rule.NewStore(assetrepo.NewOwnerRepository(db), assetrepo.NewFruitRepository(db), 0)
	services := assetrepo.NewServiceRepository(db)
	// 小批次多协程, 覆盖分页和并发路径
	orch := NewOrchestrator(assetrepo.NewSnapshotRepository(db), services, memory.NewRuleSetLock(), Options{ChunkSize: 2, Workers: 4})
	return &fixture{
		db:       db,
		rules:    rules,
		services: services,
		orch:     orch,
		maint:    NewMaintainer(rules, orch),
	}
}

func (f *fixture) owner(t *testing.T, name string) uint64 {
	t.Helper()
	o := &asset.Owner{Name: name}
	require.NoError(t, f.rules.AddOwner(context.Background(), o))
	return o.ID
}

func (f *fixture) fruitType(t *testing.T, name string) uint64 {
	t.Helper()
	ft := &asset.FruitType{Name: name}
	require.NoError(t, f.rules.AddFruitType(context.Background(), ft))
	return ft.ID
}

func (f *fixture) fruit(t *testing.T, name string, typeID uint64, matchType, regex string) uint64 {
	t.Helper()
	fr := &asset.Fruit{Name: name, FruitTypeID: typeID, MatchType: matchType}
	if regex != "" {
		fr.MatchRegex = strPtr(regex)
	}
	require.NoError(t, f.rules.AddFruit(context.Background(), fr))
	return fr.ID
}

// service 直接入库, 不触发归类
func (f *fixture) service(t *testing.T, svc *asset.Service) uint64 {
	t.Helper()
	require.NoError(t, f.services.CreateService(context.Background(), svc))
	return svc.ID
}

func (f *fixture) load(t *testing.T, id uint64) *asset.Service {
	t.Helper()
	svc, err := f.services.GetServiceByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, svc)
	return svc
}

func strPtr(s string) *string { return &s }

func assertID(t *testing.T, want uint64, got *uint64) {
	t.Helper()
	if assert.NotNil(t, got) {
		assert.Equal(t, want, *got)
	}
}

func TestClassifyService_ExactIPBeatsRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.owner(t, "A")
	b := f.owner(t, "B")
	// 网段规则先创建, 精确规则依然胜出
	_, err := f.rules.AddOwnerIPRule(ctx, b, "203.0.113.0/24")
	require.NoError(t, err)
	_, err = f.rules.AddOwnerIPRule(ctx, a, "203.0.113.5")
	require.NoError(t, err)

	exact := f.service(t, &asset.Service{IP: "203.0.113.5", Port: 443})
	other := f.service(t, &asset.Service{IP: "203.0.113.9", Port: 443})

	res, err := f.orch.ClassifyService(ctx, exact)
	require.NoError(t, err)
	assert.Equal(t, "ip_exact", res.Owner.Via.String())
	assertID(t, a, f.load(t, exact).OwnerID)

	_, err = f.orch.ClassifyService(ctx, other)
	require.NoError(t, err)
	assertID(t, b, f.load(t, other).OwnerID)
}

func TestClassifyService_LongestPrefixWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wide := f.owner(t, "wide")
	narrow := f.owner(t, "narrow")
	_, err := f.rules.AddOwnerIPRule(ctx, wide, "10.0.0.0/8")
	require.NoError(t, err)
	_, err = f.rules.AddOwnerIPRule(ctx, narrow, "10.1.2.0/24")
	require.NoError(t, err)

	inNarrow := f.service(t, &asset.Service{IP: "10.1.2.3", Port: 22})
	inWide := f.service(t, &asset.Service{IP: "10.9.9.9", Port: 22})

	_, err = f.orch.ReclassifyAll(ctx, ScopeAll)
	require.NoError(t, err)
	assertID(t, narrow, f.load(t, inNarrow).OwnerID)
	assertID(t, wide, f.load(t, inWide).OwnerID)
}

func TestClassifyService_DomainRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.owner(t, "C")
	d := f.owner(t, "D")
	_, err := f.rules.AddOwnerDomainRule(ctx, c, "example.com", true)
	require.NoError(t, err)
	_, err = f.rules.AddOwnerDomainRule(ctx, d, "shop.example.com", false)
	require.NoError(t, err)

	api := f.service(t, &asset.Service{IP: "198.51.100.1", Port: 443, Domain: strPtr("api.example.com")})
	shop := f.service(t, &asset.Service{IP: "198.51.100.2", Port: 443, Domain: strPtr("SHOP.example.com.")})
	lookalike := f.service(t, &asset.Service{IP: "198.51.100.3", Port: 443, Domain: strPtr("notexample.com")})

	_, err = f.orch.ReclassifyAll(ctx, ScopeAll)
	require.NoError(t, err)

	assertID(t, c, f.load(t, api).OwnerID)
	// 精确域名胜过后缀匹配
	assertID(t, d, f.load(t, shop).OwnerID)
	assert.Nil(t, f.load(t, lookalike).OwnerID)
}

func TestClassifyService_IPTakesPrecedenceOverDomain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	byIP := f.owner(t, "by-ip")
	byDomain := f.owner(t, "by-domain")
	_, err := f.rules.AddOwnerIPRule(ctx, byIP, "192.0.2.0/24")
	require.NoError(t, err)
	_, err = f.rules.AddOwnerDomainRule(ctx, byDomain, "example.org", true)
	require.NoError(t, err)

	id := f.service(t, &asset.Service{IP: "192.0.2.10", Port: 80, Domain: strPtr("www.example.org")})
	res, err := f.orch.ClassifyService(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cidr", res.Owner.Via.String())
	assertID(t, byIP, f.load(t, id).OwnerID)
}

func TestClassifyService_FingerprintAndTypeMirroring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	web := f.fruitType(t, "web-server")
	cms := f.fruitType(t, "cms")
	nginx := f.fruit(t, "nginx", web, "banner", `nginx/[0-9.]+`)
	f.fruit(t, "wordpress", cms, "html", `wp-content`)

	// banner 和 html 同时命中时取 banner
	both := f.service(t, &asset.Service{
		IP: "192.0.2.1", Port: 80,
		Banner:   strPtr("Server: nginx/1.18.0"),
		HTTPData: strPtr(`{"html": "<link href='/wp-content/x.css'>"}`),
	})
	res, err := f.orch.ClassifyService(ctx, both)
	require.NoError(t, err)
	assert.Equal(t, "banner", res.Identity.Kind.String())

	svc := f.load(t, both)
	assertID(t, nginx, svc.FruitID)
	assertID(t, web, svc.FruitTypeID)
}

func TestClassifyService_UnknownFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	misc := f.fruitType(t, "misc")
	web := f.fruitType(t, "web-server")
	f.fruit(t, "nginx", web, "banner", `nginx`)
	unknown := f.fruit(t, "unknown", misc, "unknown", "")

	id := f.service(t, &asset.Service{IP: "192.0.2.1", Port: 21, Banner: strPtr("220 ProFTPD ready")})
	res, err := f.orch.ClassifyService(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Identity.Fallback)

	svc := f.load(t, id)
	assertID(t, unknown, svc.FruitID)
	assertID(t, misc, svc.FruitTypeID)
}

func TestClassifyService_NoFallbackLeavesNull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	web := f.fruitType(t, "web-server")
	f.fruit(t, "nginx", web, "banner", `nginx`)

	id := f.service(t, &asset.Service{IP: "192.0.2.1", Port: 21, Banner: strPtr("vsftpd")})
	res, err := f.orch.ClassifyService(ctx, id)
	require.NoError(t, err)
	assert.False(t, res.Identity.Found)
	assert.Nil(t, f.load(t, id).FruitID)
}

func TestClassifyService_MalformedStoredRegexIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	web := f.fruitType(t, "web-server")
	// 绕过规则库直接写入一条损坏的规则
	require.NoError(t, f.db.Create(&asset.Fruit{Name: "broken", FruitTypeID: web, MatchType: "banner", MatchRegex: strPtr("(nginx")}).Error)
	nginx := f.fruit(t, "nginx", web, "banner", `nginx`)

	id := f.service(t, &asset.Service{IP: "192.0.2.1", Port: 80, Banner: strPtr("nginx/1.25")})
	report, err := f.orch.ReclassifyAll(ctx, ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedRules)
	assertID(t, nginx, f.load(t, id).FruitID)
}

func TestClassifyService_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.owner(t, "Acme")
	_, err := f.rules.AddOwnerIPRule(ctx, o, "10.0.0.0/8")
	require.NoError(t, err)
	web := f.fruitType(t, "web-server")
	f.fruit(t, "apache", web, "http_header", `(?i)server: apache`)

	id := f.service(t, &asset.Service{IP: "10.0.0.5", Port: 80, HTTPData: strPtr(`{"headers": {"Server": "Apache/2.4"}}`)})

	first, err := f.orch.ClassifyService(ctx, id)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	second, err := f.orch.ClassifyService(ctx, id)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.True(t, first.Classification.Equal(second.Classification))
}

func TestClassifyService_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.ClassifyService(context.Background(), 42)
	assert.Error(t, err)
}

func TestReclassifyAll_MatchesPerServiceAndWritesOnlyChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.owner(t, "Acme")
	_, err := f.rules.AddOwnerIPRule(ctx, o, "10.0.0.0/8")
	require.NoError(t, err)
	web := f.fruitType(t, "web-server")
	f.fruit(t, "nginx", web, "banner", `nginx`)
	f.fruit(t, "unknown", web, "unknown", "")

	var ids []uint64
	for i, ip := range []string{"10.0.0.1", "10.0.0.2", "172.16.0.1", "10.0.0.3", "192.0.2.7"} {
		svc := &asset.Service{IP: ip, Port: 80 + i}
		if i%2 == 0 {
			svc.Banner = strPtr("nginx")
		}
		ids = append(ids, f.service(t, svc))
	}

	report, err := f.orch.ReclassifyAll(ctx, ScopeAll)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 5, report.Scanned)
	assert.Equal(t, 5, report.Updated)
	assert.Equal(t, 3, report.OwnerVia["cidr"])
	assert.Equal(t, 2, report.OwnerVia["none"])
	assert.Equal(t, 3, report.IdentityKind["banner"])
	assert.Equal(t, 2, report.IdentityKind["unknown"])

	// 与逐个归类的结果一致
	snap, err := f.orch.LoadSnapshot(ctx)
	require.NoError(t, err)
	for _, id := range ids {
		svc := f.load(t, id)
		assert.True(t, Classify(svc, snap).Classification.Equal(svc.Classification()), "service %d", id)
	}

	again, err := f.orch.ReclassifyAll(ctx, ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Updated)
	assert.Equal(t, 5, again.Unchanged)
}

func TestReclassifyAll_ScopeLeavesOtherFieldsAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.owner(t, "Acme")
	_, err := f.rules.AddOwnerIPRule(ctx, o, "10.0.0.1")
	require.NoError(t, err)

	stale := uint64(999)
	id := f.service(t, &asset.Service{IP: "10.0.0.1", Port: 80, FruitID: &stale, FruitTypeID: &stale})

	report, err := f.orch.ReclassifyAll(ctx, ScopeOwner)
	require.NoError(t, err)
	assert.Empty(t, report.IdentityKind)

	svc := f.load(t, id)
	assertID(t, o, svc.OwnerID)
	assertID(t, stale, svc.FruitID)

	_, err = f.orch.ReclassifyAll(ctx, ScopeIdentity)
	require.NoError(t, err)
	svc = f.load(t, id)
	assert.Nil(t, svc.FruitID)
	assertID(t, o, svc.OwnerID)
}

func TestReclassifyAll_HonoursCancellation(t *testing.T) {
	f := newFixture(t)
	f.service(t, &asset.Service{IP: "10.0.0.1", Port: 80})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.orch.ReclassifyAll(ctx, ScopeAll)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseScope(t *testing.T) {
	for in, want := range map[string]Scope{"": ScopeAll, "ALL": ScopeAll, "owner": ScopeOwner, " identity ": ScopeIdentity} {
		got, err := ParseScope(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseScope("fruit")
	assert.Error(t, err)
}
