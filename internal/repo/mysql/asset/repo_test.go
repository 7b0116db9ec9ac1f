package asset

import (
	"context"
	"testing"

	"github.com/deveyNull/fruitmapper/internal/config"
	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLiteConnection(&config.SQLiteConfig{Path: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func strPtr(s string) *string { return &s }

func u64(v uint64) *uint64 { return &v }

func TestOwnerRepository_CRUDAndRules(t *testing.T) {
	db := newTestDB(t)
	repo := NewOwnerRepository(db)
	ctx := context.Background()

	owner := &asset.Owner{Name: "Acme", Status: asset.OwnerStatusActive}
	require.NoError(t, repo.CreateOwner(ctx, owner))
	assert.NotZero(t, owner.ID)

	got, err := repo.GetOwnerByName(ctx, "Acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, owner.ID, got.ID)

	missing, err := repo.GetOwnerByID(ctx, 9999)
	assert.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.CreateIPRule(ctx, &asset.OwnerIPRule{OwnerID: owner.ID, IP: "10.0.0.0/8", IsRange: true}))
	require.NoError(t, repo.CreateIPRule(ctx, &asset.OwnerIPRule{OwnerID: owner.ID, IP: "192.0.2.1"}))
	require.NoError(t, repo.CreateDomainRule(ctx, &asset.OwnerDomainRule{OwnerID: owner.ID, Domain: "acme.com", IncludeSubdomains: true}))

	// 字面量唯一
	assert.Error(t, repo.CreateIPRule(ctx, &asset.OwnerIPRule{OwnerID: owner.ID, IP: "192.0.2.1"}))

	rule, err := repo.GetIPRuleBySpec(ctx, "10.0.0.0/8")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.True(t, rule.IsRange)

	ipRules, err := repo.ListOwnerIPRules(ctx)
	require.NoError(t, err)
	require.Len(t, ipRules, 2)
	assert.Equal(t, "10.0.0.0/8", ipRules[0].IP)

	// 整体替换规则
	require.NoError(t, repo.ReplaceOwnerRules(ctx, owner.ID,
		[]*asset.OwnerIPRule{{IP: "198.51.100.0/24", IsRange: true}},
		[]*asset.OwnerDomainRule{{Domain: "acme.org"}},
	))
	ipRules, err = repo.ListOwnerIPRules(ctx)
	require.NoError(t, err)
	require.Len(t, ipRules, 1)
	assert.Equal(t, owner.ID, ipRules[0].OwnerID)
	domainRules, err := repo.ListOwnerDomainRules(ctx)
	require.NoError(t, err)
	require.Len(t, domainRules, 1)
	assert.Equal(t, "acme.org", domainRules[0].Domain)

	// 删除归属方时一并删除其规则
	require.NoError(t, repo.DeleteOwner(ctx, owner.ID))
	ipRules, err = repo.ListOwnerIPRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, ipRules)
	domainRules, err = repo.ListOwnerDomainRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, domainRules)
}

func TestFruitRepository_CRUD(t *testing.T) {
	db := newTestDB(t)
	repo := NewFruitRepository(db)
	ctx := context.Background()

	ft := &asset.FruitType{Name: "web-server"}
	require.NoError(t, repo.CreateFruitType(ctx, ft))

	nginx := &asset.Fruit{Name: "nginx", FruitTypeID: ft.ID, MatchType: asset.MatchTypeBanner, MatchRegex: strPtr("nginx")}
	require.NoError(t, repo.CreateFruit(ctx, nginx))
	apache := &asset.Fruit{Name: "apache", FruitTypeID: ft.ID, MatchType: asset.MatchTypeHTTPHeader, MatchRegex: strPtr("Apache")}
	require.NoError(t, repo.CreateFruit(ctx, apache))

	count, err := repo.CountFruitsByType(ctx, ft.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	fruits, err := repo.ListFruits(ctx)
	require.NoError(t, err)
	require.Len(t, fruits, 2)
	assert.Equal(t, "nginx", fruits[0].Name)

	got, err := repo.GetFruitByName(ctx, "apache")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Apache", got.Regex())

	got.MatchRegex = strPtr("Apache/2")
	require.NoError(t, repo.UpdateFruit(ctx, got))
	got, err = repo.GetFruitByID(ctx, apache.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apache/2", got.Regex())

	require.NoError(t, repo.DeleteFruit(ctx, apache.ID))
	got, err = repo.GetFruitByID(ctx, apache.ID)
	assert.NoError(t, err)
	assert.Nil(t, got)

	assert.Error(t, repo.UpdateFruitType(ctx, &asset.FruitType{Name: "x"}))
}

func TestServiceRepository_ClassificationWrites(t *testing.T) {
	db := newTestDB(t)
	repo := NewServiceRepository(db)
	ctx := context.Background()

	svc := &asset.Service{IP: "10.1.2.3", Port: 80, Banner: strPtr("nginx/1.18")}
	require.NoError(t, repo.CreateService(ctx, svc))

	require.NoError(t, repo.UpdateServiceClassification(ctx, svc.ID, asset.Classification{
		OwnerID: u64(1), FruitID: u64(2), FruitTypeID: u64(3),
	}))
	got, err := repo.GetServiceByID(ctx, svc.ID)
	require.NoError(t, err)
	assert.True(t, got.Classification().Equal(asset.Classification{OwnerID: u64(1), FruitID: u64(2), FruitTypeID: u64(3)}))

	// nil 值同样写回
	require.NoError(t, repo.UpdateServiceClassification(ctx, svc.ID, asset.Classification{FruitID: u64(2), FruitTypeID: u64(3)}))
	got, err = repo.GetServiceByID(ctx, svc.ID)
	require.NoError(t, err)
	assert.Nil(t, got.OwnerID)

	affected, err := repo.UpdateFruitTypeByFruit(ctx, 2, 9)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)
	got, err = repo.GetServiceByID(ctx, svc.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 9, *got.FruitTypeID)

	// 更新采集字段不触碰派生字段
	got.Banner = strPtr("Apache")
	got.OwnerID = nil
	got.FruitID = nil
	require.NoError(t, repo.UpdateServiceFields(ctx, got))
	got, err = repo.GetServiceByID(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apache", *got.Banner)
	assert.NotNil(t, got.FruitID)
}

func TestServiceRepository_ListServicesKeyset(t *testing.T) {
	db := newTestDB(t)
	repo := NewServiceRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		svc := &asset.Service{IP: "10.0.0.1", Port: 8000 + i}
		if i%2 == 0 {
			svc.FruitID = u64(7)
		}
		require.NoError(t, repo.CreateService(ctx, svc))
	}

	var seen []int
	filter := asset.ServiceFilter{Limit: 2}
	for {
		page, err := repo.ListServices(ctx, filter)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, s := range page {
			seen = append(seen, s.Port)
		}
		filter.AfterID = page[len(page)-1].ID
	}
	assert.Equal(t, []int{8000, 8001, 8002, 8003, 8004}, seen)

	byFruit, err := repo.ListServices(ctx, asset.ServiceFilter{FruitID: u64(7)})
	require.NoError(t, err)
	assert.Len(t, byFruit, 3)

	total, err := repo.CountServices(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
}

func TestSnapshotRepository_LoadRuleSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owners := NewOwnerRepository(db)
	fruits := NewFruitRepository(db)

	owner := &asset.Owner{Name: "Acme"}
	require.NoError(t, owners.CreateOwner(ctx, owner))
	require.NoError(t, owners.CreateIPRule(ctx, &asset.OwnerIPRule{OwnerID: owner.ID, IP: "10.0.0.0/8", IsRange: true}))
	require.NoError(t, owners.CreateDomainRule(ctx, &asset.OwnerDomainRule{OwnerID: owner.ID, Domain: "acme.com"}))
	ft := &asset.FruitType{Name: "web-server"}
	require.NoError(t, fruits.CreateFruitType(ctx, ft))
	require.NoError(t, fruits.CreateFruit(ctx, &asset.Fruit{Name: "nginx", FruitTypeID: ft.ID, MatchType: asset.MatchTypeBanner, MatchRegex: strPtr("nginx")}))

	snap, err := NewSnapshotRepository(db).LoadRuleSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.IPRules, 1)
	assert.Len(t, snap.DomainRules, 1)
	assert.Len(t, snap.Fruits, 1)
}
