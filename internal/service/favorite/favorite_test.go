package favorite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/testutil"
)

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	svc := New(r)
	u := testutil.SeedUser(t, r, "reader", "secret123", models.RoleCustomer)
	a := testutil.SeedBook(t, r, "A", 100, 1)

	fav, err := svc.Add(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.NotZero(t, fav.ID)

	_, err = svc.Add(ctx, u.ID, a.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = svc.Add(ctx, u.ID, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ok, err := svc.IsFavorite(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := svc.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Book)
	assert.Equal(t, "A", list[0].Book.Title)

	require.NoError(t, svc.Remove(ctx, u.ID, a.ID))
	assert.ErrorIs(t, svc.Remove(ctx, u.ID, a.ID), domain.ErrNotFound)

	ok, err = svc.IsFavorite(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
