package rule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deveyNull/fruitmapper/internal/config"
	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/model/system"
	"github.com/deveyNull/fruitmapper/internal/pkg/database"
	assetrepo "github.com/deveyNull/fruitmapper/internal/repo/mysql/asset"

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

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	db := newTestDB(t)
	return NewStore(assetrepo.NewOwnerRepository(db), assetrepo.NewFruitRepository(db), 0), db
}

func strPtr(s string) *string { return &s }

func TestStore_OwnerIPRuleValidation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	owner := &asset.Owner{Name: "Acme"}
	require.NoError(t, store.AddOwner(ctx, owner))
	assert.Equal(t, asset.OwnerStatusActive, owner.Status)

	tests := []struct {
		name    string
		spec    string
		wantErr error
		isRange bool
	}{
		{name: "single_ipv4", spec: "192.0.2.1", isRange: false},
		{name: "cidr", spec: " 10.0.0.0/8 ", isRange: true},
		{name: "cidr_with_host_bits", spec: "198.51.100.7/24", isRange: true},
		{name: "ipv6", spec: "2001:db8::1", isRange: false},
		{name: "garbage", spec: "not-an-ip", wantErr: system.ErrInvalidAddressFormat},
		{name: "bad_prefix", spec: "10.0.0.0/33", wantErr: system.ErrInvalidAddressFormat},
		{name: "empty", spec: "", wantErr: system.ErrInvalidAddressFormat},
		{name: "duplicate", spec: "192.0.2.1", wantErr: system.ErrRuleExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := store.AddOwnerIPRule(ctx, owner.ID, tt.spec)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, rule)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.isRange, rule.IsRange)
		})
	}

	_, err := store.AddOwnerIPRule(ctx, 999, "203.0.113.1")
	assert.ErrorIs(t, err, system.ErrOwnerNotFound)
}

func TestStore_UpdateAndRemoveIPRule(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a := &asset.Owner{Name: "A"}
	b := &asset.Owner{Name: "B"}
	require.NoError(t, store.AddOwner(ctx, a))
	require.NoError(t, store.AddOwner(ctx, b))

	rule, err := store.AddOwnerIPRule(ctx, a.ID, "10.0.0.1")
	require.NoError(t, err)
	_, err = store.AddOwnerIPRule(ctx, a.ID, "10.0.0.2")
	require.NoError(t, err)

	updated, err := store.UpdateOwnerIPRule(ctx, rule.ID, b.ID, "10.0.0.0/24")
	require.NoError(t, err)
	assert.Equal(t, b.ID, updated.OwnerID)
	assert.True(t, updated.IsRange)

	_, err = store.UpdateOwnerIPRule(ctx, rule.ID, b.ID, "10.0.0.2")
	assert.ErrorIs(t, err, system.ErrRuleExists)
	_, err = store.UpdateOwnerIPRule(ctx, rule.ID, b.ID, "bogus")
	assert.ErrorIs(t, err, system.ErrInvalidAddressFormat)
	_, err = store.UpdateOwnerIPRule(ctx, 999, b.ID, "10.0.0.9")
	assert.ErrorIs(t, err, system.ErrRuleNotFound)

	require.NoError(t, store.RemoveOwnerIPRule(ctx, rule.ID))
	assert.ErrorIs(t, store.RemoveOwnerIPRule(ctx, rule.ID), system.ErrRuleNotFound)
}

func TestStore_DomainRuleNormalisedBeforeUniqueness(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	owner := &asset.Owner{Name: "Acme"}
	require.NoError(t, store.AddOwner(ctx, owner))

	rule, err := store.AddOwnerDomainRule(ctx, owner.ID, "https://WWW.Example.com/login", true)
	require.NoError(t, err)
	assert.Equal(t, "example.com", rule.Domain)

	_, err = store.AddOwnerDomainRule(ctx, owner.ID, "example.com.", false)
	assert.ErrorIs(t, err, system.ErrRuleExists)

	_, err = store.AddOwnerDomainRule(ctx, owner.ID, "   ", false)
	assert.ErrorIs(t, err, system.ErrInvalidAddressFormat)

	updated, err := store.UpdateOwnerDomainRule(ctx, rule.ID, owner.ID, "API.example.com", false)
	require.NoError(t, err)
	assert.Equal(t, "api.example.com", updated.Domain)
	assert.False(t, updated.IncludeSubdomains)

	require.NoError(t, store.RemoveOwnerDomainRule(ctx, rule.ID))
}

func TestStore_FruitValidation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ft := &asset.FruitType{Name: "web-server"}
	require.NoError(t, store.AddFruitType(ctx, ft))

	tests := []struct {
		name    string
		fruit   *asset.Fruit
		wantErr error
	}{
		{
			name:  "valid_banner",
			fruit: &asset.Fruit{Name: "nginx", FruitTypeID: ft.ID, MatchType: "banner", MatchRegex: strPtr(`nginx/[0-9.]+`)},
		},
		{
			name:  "lookahead_accepted",
			fruit: &asset.Fruit{Name: "iis", FruitTypeID: ft.ID, MatchType: "HTTP_HEADER", MatchRegex: strPtr(`Server: (?=Microsoft)`)},
		},
		{
			name:  "unknown_without_regex",
			fruit: &asset.Fruit{Name: "unknown", FruitTypeID: ft.ID, MatchType: "unknown"},
		},
		{
			name:    "bad_regex",
			fruit:   &asset.Fruit{Name: "broken", FruitTypeID: ft.ID, MatchType: "html", MatchRegex: strPtr(`(unclosed`)},
			wantErr: system.ErrInvalidPattern,
		},
		{
			name:    "active_without_regex",
			fruit:   &asset.Fruit{Name: "empty", FruitTypeID: ft.ID, MatchType: "banner"},
			wantErr: system.ErrInvalidPattern,
		},
		{
			name:    "bad_match_type",
			fruit:   &asset.Fruit{Name: "odd", FruitTypeID: ft.ID, MatchType: "tls", MatchRegex: strPtr(`x`)},
			wantErr: system.ErrInvalidPattern,
		},
		{
			name:    "missing_type",
			fruit:   &asset.Fruit{Name: "orphan", FruitTypeID: 999, MatchType: "banner", MatchRegex: strPtr(`x`)},
			wantErr: system.ErrFruitTypeNotFound,
		},
		{
			name:    "duplicate_name",
			fruit:   &asset.Fruit{Name: "nginx", FruitTypeID: ft.ID, MatchType: "banner", MatchRegex: strPtr(`x`)},
			wantErr: system.ErrFruitExists,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.AddFruit(ctx, tt.fruit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, tt.fruit.ID)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, tt.fruit.ID)
		})
	}

	// 编译失败的规则不入库
	got, err := store.GetFruitByName(ctx, "broken")
	require.NoError(t, err)
	assert.Nil(t, got)

	var ve *system.ValidationError
	err = store.AddFruit(ctx, &asset.Fruit{Name: " ", FruitTypeID: ft.ID, MatchType: "banner", MatchRegex: strPtr("x")})
	assert.True(t, errors.As(err, &ve))
}

func TestStore_UpdateFruitReportsChange(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	web := &asset.FruitType{Name: "web-server"}
	proxy := &asset.FruitType{Name: "proxy"}
	require.NoError(t, store.AddFruitType(ctx, web))
	require.NoError(t, store.AddFruitType(ctx, proxy))

	fruit := &asset.Fruit{Name: "nginx", FruitTypeID: web.ID, MatchType: "banner", MatchRegex: strPtr("nginx")}
	require.NoError(t, store.AddFruit(ctx, fruit))

	reassigned := *fruit
	reassigned.FruitTypeID = proxy.ID
	change, err := store.UpdateFruit(ctx, &reassigned)
	require.NoError(t, err)
	assert.Equal(t, FruitChange{TypeChanged: true}, change)

	repatterned := reassigned
	repatterned.MatchRegex = strPtr("nginx/[0-9]+")
	change, err = store.UpdateFruit(ctx, &repatterned)
	require.NoError(t, err)
	assert.Equal(t, FruitChange{PatternChanged: true}, change)

	bad := repatterned
	bad.MatchRegex = strPtr("[")
	_, err = store.UpdateFruit(ctx, &bad)
	assert.ErrorIs(t, err, system.ErrInvalidPattern)

	stored, err := store.GetFruitByName(ctx, "nginx")
	require.NoError(t, err)
	assert.Equal(t, "nginx/[0-9]+", stored.Regex())
	assert.Equal(t, fruit.CreatedAt.Unix(), stored.CreatedAt.Unix())

	require.NoError(t, store.RemoveFruit(ctx, fruit.ID))
	assert.ErrorIs(t, store.RemoveFruit(ctx, fruit.ID), system.ErrFruitNotFound)
}

func TestStore_DeletionGuards(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	ft := &asset.FruitType{Name: "web-server"}
	require.NoError(t, store.AddFruitType(ctx, ft))
	fruit := &asset.Fruit{Name: "nginx", FruitTypeID: ft.ID, MatchType: "banner", MatchRegex: strPtr("nginx")}
	require.NoError(t, store.AddFruit(ctx, fruit))

	assert.ErrorIs(t, store.RemoveFruitType(ctx, ft.ID), system.ErrFruitTypeInUse)
	require.NoError(t, store.RemoveFruit(ctx, fruit.ID))
	require.NoError(t, store.RemoveFruitType(ctx, ft.ID))
	assert.ErrorIs(t, store.RemoveFruitType(ctx, ft.ID), system.ErrFruitTypeNotFound)

	owner := &asset.Owner{Name: "Acme"}
	require.NoError(t, store.AddOwner(ctx, owner))
	_, err := store.AddOwnerIPRule(ctx, owner.ID, "10.0.0.0/8")
	require.NoError(t, err)

	svc := &asset.Service{IP: "10.0.0.1", Port: 22, OwnerID: &owner.ID}
	require.NoError(t, db.Create(svc).Error)
	assert.ErrorIs(t, store.RemoveOwner(ctx, owner.ID), system.ErrOwnerInUse)

	require.NoError(t, db.Model(svc).Update("owner_id", nil).Error)
	require.NoError(t, store.RemoveOwner(ctx, owner.ID))
	assert.ErrorIs(t, store.RemoveOwner(ctx, owner.ID), system.ErrOwnerNotFound)
}

func TestStore_ListFruitTypes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	types, err := store.ListFruitTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, types)

	require.NoError(t, store.AddFruitType(ctx, &asset.FruitType{Name: "web-server", Description: "HTTP 服务"}))
	require.NoError(t, store.AddFruitType(ctx, &asset.FruitType{Name: "database"}))

	types, err = store.ListFruitTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 2)
	names := []string{types[0].Name, types[1].Name}
	assert.ElementsMatch(t, []string{"web-server", "database"}, names)
}

func TestStore_OwnerValidation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddOwner(ctx, &asset.Owner{Name: "Acme"}))
	assert.ErrorIs(t, store.AddOwner(ctx, &asset.Owner{Name: " Acme "}), system.ErrOwnerExists)
	assert.True(t, system.IsValidationError(store.AddOwner(ctx, &asset.Owner{Name: "X", Status: "retired"})))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	assert.True(t, system.IsValidationError(store.AddOwner(ctx, &asset.Owner{Name: "Y", ValidFrom: &from, ValidTo: &to})))

	owner, err := store.GetOwnerByName(ctx, "Acme")
	require.NoError(t, err)
	owner.Description = "updated"
	require.NoError(t, store.UpdateOwner(ctx, owner))

	assert.True(t, system.IsValidationError(store.UpdateOwner(ctx, &asset.Owner{BaseModel: owner.BaseModel, Name: ""})))
}
