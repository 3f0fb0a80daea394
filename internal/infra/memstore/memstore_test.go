package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC) }

func TestRepository_CreateStampsCanonicalColumns(t *testing.T) {
	repo := memstore.New[domain.Customer](fixedNow)

	c, err := repo.Create(context.Background(), domain.Customer{Meta: domain.Meta{StoreID: "acme"}, FirstName: "Ana"})
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, 1, c.Version)
	assert.True(t, c.CreatedAt.Equal(fixedNow()))
	assert.Equal(t, "acme", c.StoreID)
}

func TestRepository_ListIsTenantScoped(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New[domain.Customer](fixedNow)
	for _, store := range []string{"acme", "acme", "bravo"} {
		_, err := repo.Create(ctx, domain.Customer{Meta: domain.Meta{StoreID: store}})
		require.NoError(t, err)
	}

	acme, err := repo.List(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, acme, 2)
	for _, c := range acme {
		assert.Equal(t, "acme", c.StoreID)
	}

	all, err := repo.List(ctx, domain.AllStores)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRepository_UpdateIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New[domain.Lead](fixedNow)
	lead, err := repo.Create(ctx, domain.Lead{Meta: domain.Meta{StoreID: "acme"}, FirstName: "Sarah"})
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, "acme", lead.ID, 1, domain.Patch{"phone": "555"}))

	err = repo.Update(ctx, "acme", lead.ID, 1, domain.Patch{"phone": "666"})
	var conflict *domain.ErrConflict
	require.ErrorAs(t, err, &conflict)

	rows, err := repo.List(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "555", rows[0].Phone)
	assert.Equal(t, 2, rows[0].Version)
}

func TestRepository_ForeignTenantCannotTouchRow(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New[domain.Claim](fixedNow)
	claim, err := repo.Create(ctx, domain.Claim{Meta: domain.Meta{StoreID: "acme"}, Issue: "Door hinge"})
	require.NoError(t, err)

	var nf *domain.ErrNotFound
	assert.ErrorAs(t, repo.Update(ctx, "bravo", claim.ID, 1, domain.Patch{"notes": "x"}), &nf)
	assert.ErrorAs(t, repo.Delete(ctx, "bravo", claim.ID), &nf)
	assert.NoError(t, repo.Delete(ctx, "acme", claim.ID))
}

func TestDirectory_DomainIsUnique(t *testing.T) {
	ctx := context.Background()
	dir := memstore.NewDirectory(fixedNow)

	_, err := dir.CreateStore(ctx, domain.Store{ID: "acme", Domain: "acme", Name: "Acme"})
	require.NoError(t, err)

	_, err = dir.CreateStore(ctx, domain.Store{ID: "acme", Domain: "acme", Name: "Other"})
	var dup *domain.ErrDuplicate
	assert.ErrorAs(t, err, &dup)

	tax := 6.0
	st, err := dir.UpdateStoreSettings(ctx, "acme", domain.StoreSettings{SalesTax: &tax})
	require.NoError(t, err)
	assert.Equal(t, 6.0, st.TaxRate())
}
