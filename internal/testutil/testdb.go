// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/pkg/db"
	"github.com/Skotchmaster/bookstore/pkg/hash"
)

var seq atomic.Int64

// NewRepo returns a repo over a fresh, migrated in-memory sqlite database.
func NewRepo(t testing.TB) *repo.GormRepo {
	t.Helper()
	ctx := context.Background()

	gdb, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	require.NoError(t, db.Migrate(ctx, gdb, models.All()...))
	return repo.New(gdb)
}

func SeedCategory(t testing.TB, r *repo.GormRepo, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, IsActive: true}
	require.NoError(t, r.DB.Create(c).Error)
	return c
}

// SeedBook creates an active book in its own category.
func SeedBook(t testing.TB, r *repo.GormRepo, title string, price int64, stock int) *models.Book {
	t.Helper()
	n := seq.Add(1)
	c := SeedCategory(t, r, fmt.Sprintf("category-%d", n))
	b := &models.Book{
		Title:       title,
		Author:      "Author " + title,
		Description: "About " + title,
		Price:       price,
		Stock:       stock,
		CategoryID:  c.ID,
		Language:    "Turkish",
		IsActive:    true,
	}
	require.NoError(t, r.DB.Create(b).Error)
	return b
}

func SeedUser(t testing.TB, r *repo.GormRepo, username, password string, role models.Role) *models.User {
	t.Helper()
	h, err := hash.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: h,
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, r.DB.Create(u).Error)
	return u
}

func Stock(t testing.TB, r *repo.GormRepo, bookID uint) int {
	t.Helper()
	n, err := r.AvailableStock(context.Background(), bookID)
	require.NoError(t, err)
	return n
}
