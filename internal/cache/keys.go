package cache

import "fmt"

const (
	TagBooks      = "books"
	TagCategories = "categories"
	TagOrders     = "orders"
)

func TagBook(id uint) string { return fmt.Sprintf("book:%d", id) }
func TagUser(id uint) string { return fmt.Sprintf("user:%d", id) }

func KeyBook(id uint) string { return fmt.Sprintf("book:%d", id) }
func KeyBookPage(page, size int) string { return fmt.Sprintf("books:page:%d:%d", page, size) }
func KeyNewest(n int) string { return fmt.Sprintf("books:newest:%d", n) }
func KeyPopular(n int) string { return fmt.Sprintf("books:popular:%d", n) }
func KeyCategories() string { return "categories:all" }
func KeyCategory(id uint) string { return fmt.Sprintf("category:%d", id) }
func KeyOrderStats() string { return "orders:statistics" }
func KeyUserOrders(userID uint) string { return fmt.Sprintf("user:%d:orders", userID) }
