package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-service/internal/auth"
	"storefront-service/internal/model"
	"storefront-service/internal/store"
	"storefront-service/internal/store/memstore"
	"storefront-service/pkg/jwtutil"
)

func newBootstrapper(st *memstore.Store) *Bootstrapper {
	accounts := auth.NewService(st.Users(), jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "k", ExpirationHours: 1}), zap.NewNop())
	return New(st, accounts, "admin@example.com", "admin123", zap.NewNop())
}

func TestInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	b := newBootstrapper(st)

	first, err := b.Init(ctx)
	require.NoError(t, err)
	assert.True(t, first.AdminCreated)
	assert.True(t, first.ProductsSeeded)
	assert.Equal(t, int64(len(samples)), first.ProductCount)

	second, err := b.Init(ctx)
	require.NoError(t, err)
	assert.False(t, second.AdminCreated)
	assert.True(t, second.AdminExists)
	assert.False(t, second.ProductsSeeded)
	assert.True(t, second.ProductsExist)
	assert.Equal(t, first.ProductCount, second.ProductCount)

	admin, err := st.Users().GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)
}

func TestInitLeavesExistingCatalog(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, st.Products().Create(ctx, &model.Product{Name: "Mine", Slug: "mine", Category: model.CategoryTools}))

	res, err := newBootstrapper(st).Init(ctx)
	require.NoError(t, err)
	assert.True(t, res.ProductsExist)
	assert.Equal(t, int64(1), res.ProductCount)
}

func TestSeedReplacesCatalog(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, st.Products().Create(ctx, &model.Product{Name: "Mine", Slug: "mine", Category: model.CategoryTools}))

	n, err := newBootstrapper(st).Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(samples), n)

	_, err = st.Products().GetBySlug(ctx, "mine")
	assert.ErrorIs(t, err, store.ErrNotFound)

	p, err := st.Products().GetBySlug(ctx, "vintage-travel-journal")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryJournals, p.Category)
}

func TestSampleProductsAreValid(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range SampleProducts() {
		require.NoError(t, p.Validate(), p.Name)
		assert.False(t, seen[p.Slug], "duplicate slug %s", p.Slug)
		seen[p.Slug] = true
	}
}

func TestSlugFor(t *testing.T) {
	assert.Equal(t, "washi-tape-set-2", SlugFor("Washi Tape Set 2"))
	assert.Equal(t, "leather-and-linen", SlugFor("Leather & Linen"))
}
