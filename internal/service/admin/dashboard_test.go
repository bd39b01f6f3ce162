package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/testutil"
)

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	svc := New(r)
	u := testutil.SeedUser(t, r, "reader", "secret123", models.RoleCustomer)
	testutil.SeedUser(t, r, "boss", "secret123", models.RoleAdmin)
	a := testutil.SeedBook(t, r, "A", 1000, 2)
	testutil.SeedBook(t, r, "B", 500, 50)

	now := time.Now().UTC()
	require.NoError(t, r.CreateOrders(ctx, []models.Order{
		{Number: "N1", UserID: u.ID, BookID: a.ID, Quantity: 1, UnitPrice: 1000, TotalPrice: 1000, Status: models.OrderPending, OrderedAt: now},
		{Number: "N2", UserID: u.ID, BookID: a.ID, Quantity: 2, UnitPrice: 1000, TotalPrice: 2000, Status: models.OrderDelivered, OrderedAt: now},
		{Number: "N3", UserID: u.ID, BookID: a.ID, Quantity: 1, UnitPrice: 1000, TotalPrice: 1000, Status: models.OrderCancelled, OrderedAt: now},
	}))

	d, err := svc.Dashboard(ctx, 5)
	require.NoError(t, err)

	assert.EqualValues(t, 2, d.TotalBooks)
	assert.EqualValues(t, 2, d.ActiveUsers)
	assert.EqualValues(t, 3, d.TotalOrders)
	assert.EqualValues(t, 3000, d.TotalSales)
	assert.EqualValues(t, 1, d.PendingOrders)
	assert.EqualValues(t, 1, d.LowStockBooks)
	assert.EqualValues(t, 0, d.StatusCounts[models.OrderShipped])
	assert.Len(t, d.StatusCounts, 5)
	assert.Len(t, d.RecentOrders, 3)
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	svc := New(r)
	for _, name := range []string{"u1", "u2", "u3"} {
		testutil.SeedUser(t, r, name, "secret123", models.RoleCustomer)
	}

	page, err := svc.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "u3", page.Items[0].Username)
	assert.Equal(t, 2, page.TotalPages)
}
